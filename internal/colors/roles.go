package colors

import (
	"sort"
	"strings"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

// Role is a symbolic color instruction found in element names.
type Role string

const (
	RolePrimary            Role = "primary"
	RoleSecondary          Role = "secondary"
	RolePrimaryOnSecondary Role = "primary_on_secondary"
	RoleSecondaryOnPrimary Role = "secondary_on_primary"
	RolePrimaryOnBlack     Role = "primary_on_black"
	RolePrimaryOnWhite     Role = "primary_on_white"
	RoleSecondaryOnBlack   Role = "secondary_on_black"
	RoleSecondaryOnWhite   Role = "secondary_on_white"
	RoleWhite              Role = "white"
	RoleBlack              Role = "black"
	RoleLightColor         Role = "light_color"
	RoleDarkColor          Role = "dark_color"
)

var allRoles = []Role{
	RolePrimary, RoleSecondary,
	RolePrimaryOnSecondary, RoleSecondaryOnPrimary,
	RolePrimaryOnBlack, RolePrimaryOnWhite,
	RoleSecondaryOnBlack, RoleSecondaryOnWhite,
	RoleWhite, RoleBlack,
	RoleLightColor, RoleDarkColor,
}

// suffixOrder holds the roles longest first so "primary_on_white" wins
// over "white" when splitting compound names.
var suffixOrder = func() []Role {
	out := append([]Role(nil), allRoles...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}()

// Roles returns the role vocabulary.
func Roles() []Role {
	return append([]Role(nil), allRoles...)
}

// ParseRole reports whether s names a known role.
func ParseRole(s string) (Role, bool) {
	for _, r := range allRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// ParseRoleSuffix splits a compound token such as "logo_primary_on_white"
// into its base ("logo") and trailing role ("primary_on_white"). A token
// that is itself a role yields an empty base.
func ParseRoleSuffix(token string) (base string, role Role, ok bool) {
	if r, ok := ParseRole(token); ok {
		return "", r, true
	}
	for _, r := range suffixOrder {
		suffix := "_" + string(r)
		if strings.HasSuffix(token, suffix) && len(token) > len(suffix) {
			return strings.TrimSuffix(token, suffix), r, true
		}
	}
	return token, "", false
}

// ForRole resolves a role to a single color.
func ForRole(brand *design.Brand, role Role) (string, bool) {
	switch role {
	case RolePrimary:
		return FindPrimary(brand, true)
	case RoleSecondary:
		return FindPrimary(brand, false)
	case RolePrimaryOnSecondary:
		return Resolve(brand, "primary", "secondary", "")
	case RoleSecondaryOnPrimary:
		return Resolve(brand, "secondary", "primary", "")
	case RolePrimaryOnBlack:
		return Resolve(brand, "primary", Black, "")
	case RolePrimaryOnWhite:
		return Resolve(brand, "primary", White, "")
	case RoleSecondaryOnBlack:
		return Resolve(brand, "secondary", Black, "")
	case RoleSecondaryOnWhite:
		return Resolve(brand, "secondary", White, "")
	case RoleWhite:
		return White, true
	case RoleBlack:
		return Black, true
	case RoleLightColor:
		return Lighter(brand, "primary", "secondary")
	case RoleDarkColor:
		return Darker(brand, "primary", "secondary")
	default:
		return "", false
	}
}

// Scheme returns the ordered colors a role assigns to a colorsReplace
// mapping: the foreground first, then its background when the role names
// one. Unknown roles and unresolvable brands yield nil.
func Scheme(brand *design.Brand, role Role) []string {
	fg, ok := ForRole(brand, role)
	if !ok {
		return nil
	}
	switch role {
	case RolePrimaryOnSecondary:
		if bg, ok := FindPrimary(brand, false); ok {
			return []string{fg, bg}
		}
	case RoleSecondaryOnPrimary:
		if bg, ok := FindPrimary(brand, true); ok {
			return []string{fg, bg}
		}
	case RolePrimaryOnBlack, RoleSecondaryOnBlack:
		return []string{fg, Black}
	case RolePrimaryOnWhite, RoleSecondaryOnWhite:
		return []string{fg, White}
	}
	return []string{fg}
}
