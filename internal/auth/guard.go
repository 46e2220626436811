package auth

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pnar-online/pnar-api/internal/authz"
	"github.com/pnar-online/pnar-api/internal/platform/httpx"
	"github.com/pnar-online/pnar-api/internal/roles"
)

// Guard gates a handler on the caller's role. A request without an identity
// fails with ErrNotAuthenticated (401); an identity that does not satisfy the
// guard fails with an insufficient-privilege error (403).
type Guard struct {
	name    string
	allows  func(roles.Role) bool
	message string
}

// RequireRole admits callers ranked at or above min.
func RequireRole(min roles.Role) Guard {
	return Guard{
		name:    "min:" + min.String(),
		allows:  func(r roles.Role) bool { return authz.HasMinimumLevel(r, min) },
		message: min.Info().DisplayName + " access required",
	}
}

// RequireCapability admits callers whose role carries c.
func RequireCapability(c roles.Capability, message string) Guard {
	return Guard{
		name:    "cap:" + c.String(),
		allows:  func(r roles.Role) bool { return r.Has(c) },
		message: message,
	}
}

// Named guards used by the route table.
var (
	Authenticated      = Guard{name: "authenticated", allows: func(roles.Role) bool { return true }}
	SuperAdminOnly     = RequireRole(roles.SuperAdmin)
	AdminOnly          = RequireRole(roles.Admin)
	ModeratorOrAbove   = RequireRole(roles.Moderator)
	ContributorOrAbove = RequireRole(roles.Contributor)
	ManagementCapable  = RequireCapability(roles.CapManageUsers, "user management privileges required")
	DictionaryManager  = RequireCapability(roles.CapManageDictionary, "dictionary management privileges required")
	TranslationManager = RequireCapability(roles.CapManageTranslations, "translation management privileges required")
)

// Name identifies the guard in logs.
func (g Guard) Name() string { return g.name }

// Check applies the guard to an identity.
func (g Guard) Check(id Identity) (Identity, error) {
	if !g.allows(id.Role) {
		return Identity{}, Forbidden(g.message)
	}
	return id, nil
}

// Extract returns the request's identity if it satisfies the guard.
func (g Guard) Extract(r *http.Request) (Identity, error) {
	id, err := FromRequest(r)
	if err != nil {
		return Identity{}, err
	}
	return g.Check(id)
}

// Middleware short-circuits requests that fail the guard.
func (g Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := g.Extract(r); err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require returns id unchanged when it ranks at or above min.
func Require(id Identity, min roles.Role) (Identity, error) {
	if !authz.HasMinimumLevel(id.Role, min) {
		return Identity{}, Forbidden("insufficient role permissions for this operation")
	}
	return id, nil
}

// RequireOwned fails unless id may modify a resource created by owner.
func RequireOwned(id Identity, owner *uuid.UUID) error {
	if !authz.CanModifyOwned(id.Role, id.Subject, owner) {
		return Forbidden("you can only modify your own entries")
	}
	return nil
}

// RequireDeletable fails unless id may delete a resource created by owner.
func RequireDeletable(id Identity, owner *uuid.UUID) error {
	if !authz.CanDeleteOwned(id.Role, id.Subject, owner) {
		return Forbidden("you can only delete your own entries")
	}
	return nil
}
