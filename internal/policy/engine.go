// Package policy answers role based authorization questions from static
// per-role tables. Every function is total: an unknown role resolves to no
// access and never to an error.
package policy

import (
	"path"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// HasPermission reports whether role owns the (action, resource) permission.
func HasPermission(role Role, action Action, resource string) bool {
	p, ok := lookup(role)
	if !ok {
		return false
	}
	_, granted := p.permissions[Permission{Action: action, Resource: resource}]
	return granted
}

// HasFeature reports whether flag is enabled for role.
func HasFeature(role Role, flag FeatureFlag) bool {
	p, ok := lookup(role)
	if !ok {
		return false
	}
	_, enabled := p.features[flag]
	return enabled
}

// CanAccessRoute reports whether role may reach the given path. Any matching
// rule allows access; rules carry no precedence.
func CanAccessRoute(role Role, rawPath string) bool {
	p, ok := lookup(role)
	if !ok {
		return false
	}
	target := NormalizePath(rawPath)
	for _, prefix := range p.routes {
		if matchPrefix(prefix, target) {
			return true
		}
	}
	return false
}

// RoleNavigation returns the navigation entries of role in render order. The
// returned slice is a copy; unknown roles yield an empty slice.
func RoleNavigation(role Role) []NavigationEntry {
	p, ok := lookup(role)
	if !ok {
		return []NavigationEntry{}
	}
	return slices.Clone(p.navigation)
}

// DefaultRoute returns the landing route of role. Unknown roles land on "/".
func DefaultRoute(role Role) string {
	p, ok := lookup(role)
	if !ok {
		return "/"
	}
	return p.defaultRoute
}

// Permissions returns the permission set of role sorted by its string form.
func Permissions(role Role) []Permission {
	p, ok := lookup(role)
	if !ok {
		return []Permission{}
	}
	out := make([]Permission, 0, len(p.permissions))
	for perm := range p.permissions {
		out = append(out, perm)
	}
	slices.SortFunc(out, func(a, b Permission) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

// Features returns the enabled feature flags of role in sorted order.
func Features(role Role) []FeatureFlag {
	p, ok := lookup(role)
	if !ok {
		return []FeatureFlag{}
	}
	out := make([]FeatureFlag, 0, len(p.features))
	for f := range p.features {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// NormalizePath strips the query and fragment, resolves dot segments and
// removes trailing slashes. The result always starts with "/".
func NormalizePath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	raw = norm.NFC.String(strings.TrimSpace(raw))
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	// path.Clean drops trailing slashes and collapses "//" and "..".
	return path.Clean(raw)
}

// matchPrefix matches on whole path segments so "/admin" does not admit
// "/administrator".
func matchPrefix(prefix, target string) bool {
	if prefix == "/" || prefix == target {
		return true
	}
	return strings.HasPrefix(target, prefix+"/")
}
