package policy

// rolePolicy is the immutable rule set of one role. Values are built once at
// package initialisation and never mutated afterwards.
type rolePolicy struct {
	permissions  map[Permission]struct{}
	features     map[FeatureFlag]struct{}
	navigation   []NavigationEntry
	routes       []string
	defaultRoute string
}

// Resources referenced by the permission tables.
const (
	ResourceUsers     = "users"
	ResourceRoles     = "roles"
	ResourceBrands    = "brands"
	ResourceCreators  = "creators"
	ResourceCampaigns = "campaigns"
	ResourceContent   = "content"
	ResourceBilling   = "billing"
	ResourcePayouts   = "payouts"
	ResourceAnalytics = "analytics"
	ResourceMessages  = "messages"
	ResourceSettings  = "settings"
	ResourceAudit     = "audit"
	ResourceSessions  = "sessions"
	ResourceJobs      = "jobs"
	ResourceProfile   = "profile"
)

var (
	adminPolicy = newRolePolicy(
		[]Permission{
			{ActionAccess, "admin"},
			{ActionView, ResourceUsers}, {ActionCreate, ResourceUsers}, {ActionEdit, ResourceUsers}, {ActionDelete, ResourceUsers},
			{ActionManage, ResourceRoles},
			{ActionView, ResourceBrands}, {ActionManage, ResourceBrands},
			{ActionView, ResourceCreators}, {ActionManage, ResourceCreators},
			{ActionView, ResourceCampaigns}, {ActionManage, ResourceCampaigns},
			{ActionView, ResourceBilling}, {ActionManage, ResourceBilling},
			{ActionView, ResourcePayouts}, {ActionManage, ResourcePayouts},
			{ActionView, ResourceAnalytics},
			{ActionView, ResourceAudit},
			{ActionManage, ResourceSettings},
			{ActionView, ResourceSessions}, {ActionDelete, ResourceSessions},
			{ActionView, ResourceJobs},
			{ActionEdit, ResourceProfile},
		},
		[]FeatureFlag{
			FeatureAuditTrail,
			FeatureSystemSettings,
			FeatureUserManagement,
			FeatureAnalyticsDashboard,
		},
		[]NavigationEntry{
			{Label: "Dashboard", Path: "/admin/dashboard", IconKey: "layout-dashboard"},
			{Label: "Users", Path: "/admin/users", IconKey: "users"},
			{Label: "Brands", Path: "/admin/brands", IconKey: "building"},
			{Label: "Creators", Path: "/admin/creators", IconKey: "sparkles"},
			{Label: "Campaigns", Path: "/admin/campaigns", IconKey: "megaphone"},
			{Label: "Billing", Path: "/admin/billing", IconKey: "credit-card"},
			{Label: "Audit Trail", Path: "/admin/audit", IconKey: "scroll-text"},
			{Label: "Settings", Path: "/admin/settings", IconKey: "settings"},
			{Label: "Account", Path: "/account/sessions", IconKey: "user-cog"},
		},
		[]string{"/admin", "/account"},
		"/admin/dashboard",
	)

	brandPolicy = newRolePolicy(
		[]Permission{
			{ActionAccess, "brand"},
			{ActionView, ResourceCampaigns}, {ActionCreate, ResourceCampaigns}, {ActionEdit, ResourceCampaigns}, {ActionDelete, ResourceCampaigns},
			{ActionView, ResourceCreators},
			{ActionView, ResourceContent}, {ActionEdit, ResourceContent},
			{ActionView, ResourceBilling}, {ActionManage, ResourceBilling},
			{ActionView, ResourceAnalytics},
			{ActionView, ResourceMessages}, {ActionCreate, ResourceMessages},
			{ActionView, ResourceSessions}, {ActionDelete, ResourceSessions},
			{ActionEdit, ResourceProfile},
		},
		[]FeatureFlag{
			FeatureCampaignBuilder,
			FeatureCreatorDiscovery,
			FeatureAIContent,
			FeaturePayments,
			FeatureAnalyticsDashboard,
		},
		[]NavigationEntry{
			{Label: "Dashboard", Path: "/brand/dashboard", IconKey: "layout-dashboard"},
			{Label: "Campaigns", Path: "/brand/campaigns", IconKey: "megaphone"},
			{Label: "Discover Creators", Path: "/brand/creators", IconKey: "search"},
			{Label: "Content", Path: "/brand/content", IconKey: "image"},
			{Label: "Messages", Path: "/brand/messages", IconKey: "message-square"},
			{Label: "Analytics", Path: "/brand/analytics", IconKey: "bar-chart"},
			{Label: "Billing", Path: "/brand/billing", IconKey: "credit-card"},
			{Label: "Account", Path: "/account/sessions", IconKey: "user-cog"},
		},
		[]string{"/brand", "/account"},
		"/brand/dashboard",
	)

	creatorPolicy = newRolePolicy(
		[]Permission{
			{ActionAccess, "creator"},
			{ActionView, ResourceCampaigns},
			{ActionView, ResourceContent}, {ActionCreate, ResourceContent}, {ActionEdit, ResourceContent}, {ActionDelete, ResourceContent},
			{ActionView, ResourcePayouts},
			{ActionView, ResourceMessages}, {ActionCreate, ResourceMessages},
			{ActionView, ResourceSessions}, {ActionDelete, ResourceSessions},
			{ActionEdit, ResourceProfile},
		},
		[]FeatureFlag{
			FeatureAIContent,
			FeaturePortfolio,
		},
		[]NavigationEntry{
			{Label: "Dashboard", Path: "/creator/dashboard", IconKey: "layout-dashboard"},
			{Label: "Opportunities", Path: "/creator/campaigns", IconKey: "megaphone"},
			{Label: "My Content", Path: "/creator/content", IconKey: "image"},
			{Label: "Portfolio", Path: "/creator/portfolio", IconKey: "folder"},
			{Label: "Messages", Path: "/creator/messages", IconKey: "message-square"},
			{Label: "Payouts", Path: "/creator/payouts", IconKey: "wallet"},
			{Label: "Account", Path: "/account/sessions", IconKey: "user-cog"},
		},
		[]string{"/creator", "/account"},
		"/creator/dashboard",
	)
)

func newRolePolicy(perms []Permission, features []FeatureFlag, nav []NavigationEntry, routes []string, defaultRoute string) *rolePolicy {
	p := &rolePolicy{
		permissions:  make(map[Permission]struct{}, len(perms)),
		features:     make(map[FeatureFlag]struct{}, len(features)),
		navigation:   nav,
		routes:       make([]string, 0, len(routes)),
		defaultRoute: defaultRoute,
	}
	for _, perm := range perms {
		p.permissions[perm] = struct{}{}
	}
	for _, f := range features {
		p.features[f] = struct{}{}
	}
	for _, route := range routes {
		p.routes = append(p.routes, NormalizePath(route))
	}
	return p
}

// lookup resolves the rule set of a role. Unknown roles have none.
func lookup(r Role) (*rolePolicy, bool) {
	switch r {
	case RoleAdmin:
		return adminPolicy, true
	case RoleBrand:
		return brandPolicy, true
	case RoleCreator:
		return creatorPolicy, true
	default:
		return nil, false
	}
}
