package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnar-online/pnar-api/internal/auth"
	"github.com/pnar-online/pnar-api/internal/platform/httpx"
	"github.com/pnar-online/pnar-api/internal/roles"
)

func guarded(g auth.Guard, id *auth.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != nil {
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), *id))
	}
	rec := httptest.NewRecorder()
	g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)
	return rec
}

func TestGuardWithoutIdentityIsUnauthorized(t *testing.T) {
	rec := guarded(auth.AdminOnly, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, err := auth.AdminOnly.Extract(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.True(t, auth.IsUnauthenticated(err))
}

func TestGuardInsufficientRankIsForbidden(t *testing.T) {
	id := auth.Identity{Subject: uuid.New(), Role: roles.Moderator}
	rec := guarded(auth.AdminOnly, &id)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Administrator access required", p.Detail)
}

func TestNamedGuards(t *testing.T) {
	cases := []struct {
		guard auth.Guard
		allow []roles.Role
		deny  []roles.Role
	}{
		{auth.SuperAdminOnly, []roles.Role{roles.SuperAdmin}, []roles.Role{roles.Admin, roles.User, roles.Unknown}},
		{auth.AdminOnly, []roles.Role{roles.SuperAdmin, roles.Admin}, []roles.Role{roles.Moderator, roles.Unknown}},
		{auth.ModeratorOrAbove, []roles.Role{roles.Admin, roles.Moderator}, []roles.Role{roles.Contributor}},
		{auth.ContributorOrAbove, []roles.Role{roles.Moderator, roles.Contributor}, []roles.Role{roles.User, roles.Unknown}},
		{auth.ManagementCapable, []roles.Role{roles.SuperAdmin, roles.Admin}, []roles.Role{roles.Moderator, roles.Contributor}},
		{auth.DictionaryManager, []roles.Role{roles.Admin, roles.Moderator}, []roles.Role{roles.Contributor, roles.User}},
		{auth.TranslationManager, []roles.Role{roles.Moderator}, []roles.Role{roles.User}},
		{auth.Authenticated, []roles.Role{roles.User, roles.Unknown}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.guard.Name(), func(t *testing.T) {
			for _, r := range tc.allow {
				_, err := tc.guard.Check(auth.Identity{Subject: uuid.New(), Role: r})
				assert.NoError(t, err, r.String())
			}
			for _, r := range tc.deny {
				_, err := tc.guard.Check(auth.Identity{Subject: uuid.New(), Role: r})
				assert.ErrorIs(t, err, auth.ErrInsufficientPrivilege, r.String())
				assert.True(t, auth.IsForbidden(err))
				assert.False(t, auth.IsUnauthenticated(err))
			}
		})
	}
}

func TestRequire(t *testing.T) {
	id := auth.Identity{Subject: uuid.New(), Role: roles.Contributor}

	got, err := auth.Require(id, roles.Contributor)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = auth.Require(id, roles.Moderator)
	assert.True(t, auth.IsForbidden(err))
}

func TestRequireOwnedAndDeletable(t *testing.T) {
	me := uuid.New()
	other := uuid.New()
	contributor := auth.Identity{Subject: me, Role: roles.Contributor}

	assert.NoError(t, auth.RequireOwned(contributor, &me))
	assert.True(t, auth.IsForbidden(auth.RequireOwned(contributor, &other)))
	assert.True(t, auth.IsForbidden(auth.RequireOwned(contributor, nil)))
	assert.NoError(t, auth.RequireDeletable(contributor, &me))

	moderator := auth.Identity{Subject: me, Role: roles.Moderator}
	assert.True(t, auth.IsForbidden(auth.RequireOwned(moderator, &me)))
	assert.True(t, auth.IsForbidden(auth.RequireDeletable(moderator, &me)))

	admin := auth.Identity{Subject: me, Role: roles.Admin}
	assert.NoError(t, auth.RequireOwned(admin, &other))
	assert.NoError(t, auth.RequireDeletable(admin, nil))
}
