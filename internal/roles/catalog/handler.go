// Package catalog serves the role hierarchy over HTTP.
package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pnar-online/pnar-api/internal/auth"
	"github.com/pnar-online/pnar-api/internal/authz"
	"github.com/pnar-online/pnar-api/internal/platform/httpx"
	"github.com/pnar-online/pnar-api/internal/roles"
)

// Handler exposes the role catalogue.
type Handler struct {
	authn *auth.Authenticator
}

// NewHandler builds Handler instance.
func NewHandler(authn *auth.Authenticator) *Handler {
	return &Handler{authn: authn}
}

// MountRoutes registers role routes. Listing is public; the caller-relative
// views require user management privileges.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Group(func(r chi.Router) {
		r.Use(h.authn.Middleware, auth.ManagementCapable.Middleware)
		r.Get("/assignable", h.listAssignable)
		r.Get("/manageable", h.listManageable)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, roles.All())
}

func (h *Handler) listAssignable(w http.ResponseWriter, r *http.Request) {
	h.respondRelative(w, r, authz.AssignableRoles)
}

func (h *Handler) listManageable(w http.ResponseWriter, r *http.Request) {
	h.respondRelative(w, r, authz.ManageableRoles)
}

func (h *Handler) respondRelative(w http.ResponseWriter, r *http.Request, pick func(roles.Role) []roles.Role) {
	id, err := auth.FromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	picked := pick(id.Role)
	out := make([]roles.Info, 0, len(picked))
	for _, role := range picked {
		out = append(out, role.Info())
	}
	httpx.JSON(w, http.StatusOK, out)
}
