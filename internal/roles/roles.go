// Package roles holds the fixed application role hierarchy.
//
// Roles form a total order on Level. Every privilege comparison in the
// application goes through the level (see package authz); role ids are never
// compared ad hoc.
package roles

import (
	"fmt"
	"strings"
)

// Role identifies an application role by its stable id.
type Role string

// Application roles, highest privilege first.
const (
	SuperAdmin  Role = "superadmin"
	Admin       Role = "admin"
	Moderator   Role = "moderator"
	Contributor Role = "contributor"
	User        Role = "user"

	// Unknown is what unrecognised ids parse to. It ranks below every real role.
	Unknown Role = ""
)

// Capability is a coarse, informational permission flag attached to a role.
type Capability uint8

const (
	CapManageUsers Capability = iota + 1
	CapManageDictionary
	CapManageTranslations
)

func (c Capability) String() string {
	switch c {
	case CapManageUsers:
		return "manage_users"
	case CapManageDictionary:
		return "manage_dictionary"
	case CapManageTranslations:
		return "manage_translations"
	default:
		return "unknown"
	}
}

// Info describes a role as published by the role catalogue.
type Info struct {
	ID                    Role   `json:"role_id"`
	DisplayName           string `json:"display_name"`
	Description           string `json:"description"`
	HierarchyLevel        int    `json:"hierarchy_level"`
	CanManageUsers        bool   `json:"can_manage_users"`
	CanManageDictionary   bool   `json:"can_manage_dictionary"`
	CanManageTranslations bool   `json:"can_manage_translations"`
}

var table = [...]Info{
	{
		ID:                    SuperAdmin,
		DisplayName:           "Super Administrator",
		Description:           "Complete system control with all privileges",
		HierarchyLevel:        5,
		CanManageUsers:        true,
		CanManageDictionary:   true,
		CanManageTranslations: true,
	},
	{
		ID:                    Admin,
		DisplayName:           "Administrator",
		Description:           "System administration with user and content management",
		HierarchyLevel:        4,
		CanManageUsers:        true,
		CanManageDictionary:   true,
		CanManageTranslations: true,
	},
	{
		ID:                    Moderator,
		DisplayName:           "Moderator",
		Description:           "Content moderation and translation review",
		HierarchyLevel:        3,
		CanManageDictionary:   true,
		CanManageTranslations: true,
	},
	{
		ID:             Contributor,
		DisplayName:    "Contributor",
		Description:    "Submit and manage own translations and contributions",
		HierarchyLevel: 2,
	},
	{
		ID:             User,
		DisplayName:    "User",
		Description:    "Basic user with read access",
		HierarchyLevel: 1,
	},
}

// Parse maps a stored or presented id to a Role. Unrecognised ids map to
// Unknown rather than failing, so they fall to the bottom of the hierarchy.
func Parse(id string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(id)))
	if _, ok := Lookup(r); ok {
		return r
	}
	return Unknown
}

// Lookup returns the catalogue entry for r.
func Lookup(r Role) (Info, bool) {
	for _, info := range table {
		if info.ID == r {
			return info, true
		}
	}
	return Info{}, false
}

// Valid reports whether r is one of the defined roles.
func Valid(r Role) bool {
	_, ok := Lookup(r)
	return ok
}

// All returns the catalogue ordered from highest to lowest level.
func All() []Info {
	out := make([]Info, len(table))
	copy(out, table[:])
	return out
}

// Ranked returns every defined role ordered from highest to lowest level.
func Ranked() []Role {
	out := make([]Role, 0, len(table))
	for _, info := range table {
		out = append(out, info.ID)
	}
	return out
}

// Top is the single role above every other.
func Top() Role { return table[0].ID }

// Lowest is the least privileged defined role, used as the fail-safe default.
func Lowest() Role { return table[len(table)-1].ID }

// Level is the hierarchy rank of r; higher means more privilege. Unknown is 0.
func (r Role) Level() int {
	if info, ok := Lookup(r); ok {
		return info.HierarchyLevel
	}
	return 0
}

// Info returns the catalogue entry, or a zero-level placeholder for Unknown.
func (r Role) Info() Info {
	if info, ok := Lookup(r); ok {
		return info
	}
	return Info{ID: Unknown, DisplayName: "Unknown"}
}

// Has reports whether r carries the capability flag c.
func (r Role) Has(c Capability) bool {
	info, ok := Lookup(r)
	if !ok {
		return false
	}
	switch c {
	case CapManageUsers:
		return info.CanManageUsers
	case CapManageDictionary:
		return info.CanManageDictionary
	case CapManageTranslations:
		return info.CanManageTranslations
	default:
		return false
	}
}

func (r Role) String() string {
	if r == Unknown {
		return "unknown"
	}
	return string(r)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unlike Parse it rejects
// unknown ids, since request bodies naming a role must name a real one.
func (r *Role) UnmarshalText(text []byte) error {
	parsed := Parse(string(text))
	if parsed == Unknown {
		return fmt.Errorf("roles: unknown role %q", string(text))
	}
	*r = parsed
	return nil
}
