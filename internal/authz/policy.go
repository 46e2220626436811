// Package authz holds the authorization policy as pure predicates over roles,
// identities and ownership. Nothing here performs I/O or returns errors;
// callers turn a false result into a forbidden response.
package authz

import (
	"github.com/google/uuid"

	"github.com/pnar-online/pnar-api/internal/roles"
)

// Subject is an identity as seen by the policy: who it is and its rank.
type Subject struct {
	ID   uuid.UUID
	Role roles.Role
}

// creatorRole is the single rank whose write access depends on ownership.
const creatorRole = roles.Contributor

// HasMinimumLevel reports whether role ranks at or above required.
func HasMinimumLevel(role, required roles.Role) bool {
	return role.Level() >= required.Level()
}

// CanView reports whether caller may read target's account.
// The top rank sees everyone, admins see their own rank and below, and
// everyone else sees only themselves.
func CanView(caller, target Subject) bool {
	switch caller.Role {
	case roles.SuperAdmin:
		return true
	case roles.Admin:
		return target.Role.Level() <= caller.Role.Level()
	default:
		return caller.ID == target.ID
	}
}

// CanManage reports whether caller may modify or remove an account holding
// target. Admins manage strictly below their own rank, never peers.
func CanManage(caller, target roles.Role) bool {
	switch caller {
	case roles.SuperAdmin:
		return true
	case roles.Admin:
		return target.Level() < caller.Level()
	default:
		return false
	}
}

// CanModifyOwned reports whether caller may edit a resource created by owner.
// A nil owner means the resource has no recorded creator.
func CanModifyOwned(role roles.Role, callerID uuid.UUID, owner *uuid.UUID) bool {
	switch role {
	case roles.SuperAdmin, roles.Admin:
		return true
	case creatorRole:
		return owner != nil && *owner == callerID
	default:
		return false
	}
}

// CanDeleteOwned reports whether caller may delete a resource created by owner.
func CanDeleteOwned(role roles.Role, callerID uuid.UUID, owner *uuid.UUID) bool {
	return CanModifyOwned(role, callerID, owner)
}

// AssignableRoles lists the roles caller may grant to another account,
// highest first. Admins may only hand out the two lowest ranks.
func AssignableRoles(caller roles.Role) []roles.Role {
	ranked := roles.Ranked()
	switch caller {
	case roles.SuperAdmin:
		return ranked
	case roles.Admin:
		return ranked[len(ranked)-2:]
	default:
		return nil
	}
}

// CanAssign reports whether target is in caller's assignable set.
func CanAssign(caller, target roles.Role) bool {
	for _, r := range AssignableRoles(caller) {
		if r == target {
			return true
		}
	}
	return false
}

// ManageableRoles lists the roles caller may manage, highest first.
func ManageableRoles(caller roles.Role) []roles.Role {
	var out []roles.Role
	for _, r := range roles.Ranked() {
		if CanManage(caller, r) {
			out = append(out, r)
		}
	}
	return out
}

// HiddenRoles lists the defined roles whose accounts caller may not see,
// highest first. Stored roles outside the table rank as Unknown, which every
// management rank may view, so a listing filters by exclusion. Callers outside
// the management ranks see only themselves and should not list at all.
func HiddenRoles(caller roles.Role) []roles.Role {
	var out []roles.Role
	for _, r := range roles.Ranked() {
		if !CanView(Subject{Role: caller}, Subject{Role: r}) {
			out = append(out, r)
		}
	}
	return out
}

// CanAccessUserManagement reports whether caller may use user management.
func CanAccessUserManagement(caller roles.Role) bool {
	return caller.Has(roles.CapManageUsers)
}
