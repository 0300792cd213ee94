package policy

// Role is the closed set of actor categories recognised by the platform.
type Role string

// Known roles.
const (
	RoleAdmin   Role = "admin"
	RoleBrand   Role = "brand"
	RoleCreator Role = "creator"
)

// Roles lists every known role in declaration order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleBrand, RoleCreator}
}

// ParseRole converts a stored role name to a Role. Unknown or empty values
// report false; callers must treat them as having no access.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleBrand:
		return RoleBrand, true
	case RoleCreator:
		return RoleCreator, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Action is the verb half of a permission.
type Action string

// Supported actions.
const (
	ActionAccess Action = "access"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionView   Action = "view"
	ActionManage Action = "manage"
)

// Permission grants one action on one resource.
type Permission struct {
	Action   Action
	Resource string
}

// String renders the permission as "action:resource".
func (p Permission) String() string {
	return string(p.Action) + ":" + p.Resource
}

// FeatureFlag names an optional platform capability.
type FeatureFlag string

// Platform features.
const (
	FeatureAuditTrail         FeatureFlag = "auditTrail"
	FeatureSystemSettings     FeatureFlag = "systemSettings"
	FeatureUserManagement     FeatureFlag = "userManagement"
	FeatureCampaignBuilder    FeatureFlag = "campaignBuilder"
	FeatureCreatorDiscovery   FeatureFlag = "creatorDiscovery"
	FeatureAIContent          FeatureFlag = "aiContent"
	FeaturePayments           FeatureFlag = "payments"
	FeaturePortfolio          FeatureFlag = "portfolio"
	FeatureAnalyticsDashboard FeatureFlag = "analyticsDashboard"
)

// NavigationEntry is one item of a role's navigation menu.
type NavigationEntry struct {
	Label   string `json:"label"`
	Path    string `json:"path"`
	IconKey string `json:"icon_key"`
}
