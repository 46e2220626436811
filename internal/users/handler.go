package users

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pnar-online/pnar-api/internal/auth"
	"github.com/pnar-online/pnar-api/internal/platform/httpx"
	"github.com/pnar-online/pnar-api/internal/roles"
	"github.com/pnar-online/pnar-api/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authn     *auth.Authenticator
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authn *auth.Authenticator) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service, authn: authn, validator: validator.New()}
}

// MountRoutes registers user routes. Every route requires a bearer token.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authn.Middleware)
	r.Get("/me", h.getMe)
	r.Put("/me", h.updateMe)
	r.Patch("/me/password", h.changeMyPassword)
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
	r.Patch("/{id}/password", h.changePassword)
	r.Delete("/{id}", h.deleteUser)
	r.Group(func(r chi.Router) {
		r.Use(auth.ManagementCapable.Middleware)
		r.Get("/", h.listUsers)
		r.Put("/{id}/role", h.updateRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly.Middleware)
		r.Post("/", h.createUser)
		r.Get("/email/{email}", h.getUserByEmail)
	})
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  *string    `json:"full_name,omitempty"`
	Role      roles.Role `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ListResponse is one page of users.
type ListResponse struct {
	Data       []UserResponse    `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

type updateRoleRequest struct {
	Role roles.Role `json:"role" validate:"required"`
}

type createUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8,max=72"`
	FullName string     `json:"full_name" validate:"omitempty,min=2,max=100"`
	Role     roles.Role `json:"role"`
}

type updateProfileRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"full_name" validate:"omitempty,min=2,max=100"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

func newUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.FromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Me(r.Context(), caller)
	if err != nil {
		h.fail(w, "get current user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}
	user, err := h.service.View(r.Context(), caller, id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.FromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, perPage := shared.PageParams(r)
	list, pagination, err := h.service.List(r.Context(), caller, page, perPage)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	out := ListResponse{Data: make([]UserResponse, 0, len(list)), Pagination: pagination}
	for i := range list {
		out.Data = append(out.Data, newUserResponse(&list[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.AssignRole(r.Context(), caller, id, req.Role)
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.FromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Create(r.Context(), caller, CreateInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	})
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newUserResponse(user))
}

func (h *Handler) getUserByEmail(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.FromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || h.validator.Var(email, "required,email") != nil {
		httpx.ValidationProblem(w, map[string]string{"email": "email"})
		return
	}
	user, err := h.service.FindByEmail(r.Context(), caller, email)
	if err != nil {
		h.fail(w, "get user by email", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.FromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.updateProfile(w, r, caller, caller.Subject)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}
	h.updateProfile(w, r, caller, id)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, caller auth.Identity, id uuid.UUID) {
	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), caller, id, ProfileInput{Email: req.Email, FullName: req.FullName})
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newUserResponse(user))
}

func (h *Handler) changeMyPassword(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.FromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.setPassword(w, r, caller, caller.Subject)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}
	h.setPassword(w, r, caller, id)
}

func (h *Handler) setPassword(w http.ResponseWriter, r *http.Request, caller auth.Identity, id uuid.UUID) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.ChangePassword(r.Context(), caller, id, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, ErrCurrentPassword) {
		httpx.ValidationProblem(w, map[string]string{"current_password": "mismatch"})
		return
	}
	if err != nil {
		h.fail(w, "change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), caller, id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (auth.Identity, uuid.UUID, bool) {
	caller, err := auth.FromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return auth.Identity{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.ValidationProblem(w, map[string]string{"id": "uuid"})
		return auth.Identity{}, uuid.Nil, false
	}
	return caller, id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if fields := httpx.FieldErrors(h.validator.Struct(dst)); fields != nil {
		httpx.ValidationProblem(w, fields)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !auth.IsForbidden(err) && !auth.IsUnauthenticated(err) {
		h.logger.Warn(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
