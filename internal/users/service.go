package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pnar-online/pnar-api/internal/auth"
	"github.com/pnar-online/pnar-api/internal/authz"
	"github.com/pnar-online/pnar-api/internal/roles"
	"github.com/pnar-online/pnar-api/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, in NewUser) (*User, error)
	List(ctx context.Context, hidden []roles.Role, limit, offset int) ([]User, int, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, changes ProfileChanges, check RoleCheck) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, check CredentialCheck) error
	UpdateRole(ctx context.Context, id uuid.UUID, role roles.Role, check RoleCheck) (*User, error)
	Delete(ctx context.Context, id uuid.UUID, check RoleCheck) error
}

// ErrCurrentPassword is returned when a self-service password change presents
// the wrong current password.
var ErrCurrentPassword = errors.New("users: current password does not match")

var (
	errViewDenied     = auth.Forbidden("you can only view your own profile")
	errManageDenied   = auth.Forbidden("insufficient privileges to manage this user")
	errUpdateDenied   = auth.Forbidden("you can only update your own profile")
	errPasswordDenied = auth.Forbidden("you can only change your own password")
	errSelfRoleChange = auth.Forbidden("you cannot change your own role")
	errAssignDenied   = auth.Forbidden("you cannot assign this role")
)

// CreateInput carries an administrator-created account.
type CreateInput struct {
	Email    string
	Password string
	FullName string
	Role     roles.Role
}

// ProfileInput carries a profile update. Empty fields are left unchanged.
type ProfileInput struct {
	Email    string
	FullName string
}

// Auditor persists a record of privileged changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service applies the role hierarchy to user management.
type Service struct {
	repo   RepositoryPort
	audit  Auditor
	logger *slog.Logger
	cost   int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost, used by tests to keep hashing fast.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// WithAudit records role changes and deletions through a.
func (s *Service) WithAudit(a Auditor) *Service {
	s.audit = a
	return s
}

func (s *Service) record(ctx context.Context, entry shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context, caller auth.Identity) (*User, error) {
	return s.repo.Get(ctx, caller.Subject)
}

// View returns the user with id if caller may see it. Callers outside the
// management ranks are refused before any lookup, so they cannot probe ids.
func (s *Service) View(ctx context.Context, caller auth.Identity, id uuid.UUID) (*User, error) {
	if id == caller.Subject {
		return s.repo.Get(ctx, id)
	}
	if !authz.CanAccessUserManagement(caller.Role) {
		return nil, errViewDenied
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanView(caller.AsSubject(), authz.Subject{ID: user.ID, Role: user.Role}) {
		return nil, errViewDenied
	}
	return user, nil
}

// FindByEmail returns the user registered under email if caller may see it.
func (s *Service) FindByEmail(ctx context.Context, caller auth.Identity, email string) (*User, error) {
	if !authz.CanAccessUserManagement(caller.Role) {
		return nil, errViewDenied
	}
	user, err := s.repo.GetByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if !authz.CanView(caller.AsSubject(), authz.Subject{ID: user.ID, Role: user.Role}) {
		return nil, errViewDenied
	}
	return user, nil
}

// Create adds an account on behalf of caller. The role defaults to the lowest
// rank and must be one caller may assign.
func (s *Service) Create(ctx context.Context, caller auth.Identity, in CreateInput) (*User, error) {
	role := in.Role
	if role == "" {
		role = roles.Lowest()
	}
	if !authz.CanAssign(caller.Role, role) {
		return nil, errAssignDenied
	}
	hash, err := auth.HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, err
	}
	nu := NewUser{
		Email:        auth.NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if name := strings.TrimSpace(in.FullName); name != "" {
		nu.FullName = &name
	}
	user, err := s.repo.Create(ctx, nu)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created",
		slog.String("actor", caller.Subject.String()),
		slog.String("target", user.ID.String()),
		slog.String("role", role.String()),
	)
	s.record(ctx, shared.AuditLog{
		ActorID:  caller.Subject,
		Action:   shared.AuditUserCreated,
		Entity:   "user",
		EntityID: user.ID.String(),
		Meta:     map[string]any{"role": role.String()},
	})
	return user, nil
}

// UpdateProfile changes the email or name of user id. Anyone may update their
// own profile; updating another requires managing its role.
func (s *Service) UpdateProfile(ctx context.Context, caller auth.Identity, id uuid.UUID, in ProfileInput) (*User, error) {
	self := id == caller.Subject
	if !self && !authz.CanAccessUserManagement(caller.Role) {
		return nil, errUpdateDenied
	}
	var changes ProfileChanges
	if email := auth.NormalizeEmail(in.Email); email != "" {
		changes.Email = &email
	}
	if name := strings.TrimSpace(in.FullName); name != "" {
		changes.FullName = &name
	}
	user, err := s.repo.UpdateProfile(ctx, id, changes, func(current roles.Role) error {
		if !self && !authz.CanManage(caller.Role, current) {
			return errUpdateDenied
		}
		return nil
	})
	if err != nil {
		return nil, s.hideMissing(caller, err)
	}
	return user, nil
}

// ChangePassword sets a new password for user id. Changing your own password
// requires the current one; resetting another account's password requires
// managing its role.
func (s *Service) ChangePassword(ctx context.Context, caller auth.Identity, id uuid.UUID, current, next string) error {
	self := id == caller.Subject
	if !self && !authz.CanAccessUserManagement(caller.Role) {
		return errPasswordDenied
	}
	hash, err := auth.HashPassword(next, s.cost)
	if err != nil {
		return err
	}
	err = s.repo.UpdatePassword(ctx, id, hash, func(role roles.Role, stored string) error {
		if self {
			if !auth.PasswordMatches(stored, current) {
				return ErrCurrentPassword
			}
			return nil
		}
		if !authz.CanManage(caller.Role, role) {
			return errPasswordDenied
		}
		return nil
	})
	if err != nil {
		return s.hideMissing(caller, err)
	}
	s.logger.Info("user password changed",
		slog.String("actor", caller.Subject.String()),
		slog.String("target", id.String()),
	)
	s.record(ctx, shared.AuditLog{
		ActorID:  caller.Subject,
		Action:   shared.AuditPasswordChanged,
		Entity:   "user",
		EntityID: id.String(),
		Meta:     map[string]any{"self": self},
	})
	return nil
}

// List returns a page of the users caller may see.
func (s *Service) List(ctx context.Context, caller auth.Identity, page, perPage int) ([]User, shared.Pagination, error) {
	if !authz.CanAccessUserManagement(caller.Role) {
		return nil, shared.Pagination{}, errManageDenied
	}
	pg := shared.NewPagination(page, perPage, 0)
	users, total, err := s.repo.List(ctx, authz.HiddenRoles(caller.Role), pg.PerPage, shared.Offset(pg.Page, pg.PerPage))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(pg.Page, pg.PerPage, total), nil
}

// AssignRole changes the role of user id. The caller must be allowed to grant
// role and to manage the user's current role; nobody changes their own role.
func (s *Service) AssignRole(ctx context.Context, caller auth.Identity, id uuid.UUID, role roles.Role) (*User, error) {
	if id == caller.Subject {
		return nil, errSelfRoleChange
	}
	if !authz.CanAssign(caller.Role, role) {
		return nil, errAssignDenied
	}

	var previous roles.Role
	user, err := s.repo.UpdateRole(ctx, id, role, func(current roles.Role) error {
		if !authz.CanManage(caller.Role, current) {
			return errManageDenied
		}
		previous = current
		return nil
	})
	if err != nil {
		return nil, s.hideMissing(caller, err)
	}
	s.logger.Info("user role changed",
		slog.String("actor", caller.Subject.String()),
		slog.String("target", id.String()),
		slog.String("from", previous.String()),
		slog.String("to", role.String()),
	)
	s.record(ctx, shared.AuditLog{
		ActorID:  caller.Subject,
		Action:   shared.AuditRoleChanged,
		Entity:   "user",
		EntityID: id.String(),
		Meta:     map[string]any{"from": previous.String(), "to": role.String()},
	})
	return user, nil
}

// Delete removes user id. Anyone may delete their own account; deleting
// another account requires managing its role.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id uuid.UUID) error {
	self := id == caller.Subject
	if !self && !authz.CanAccessUserManagement(caller.Role) {
		return errManageDenied
	}
	err := s.repo.Delete(ctx, id, func(current roles.Role) error {
		if !self && !authz.CanManage(caller.Role, current) {
			return errManageDenied
		}
		return nil
	})
	if err != nil {
		return s.hideMissing(caller, err)
	}
	s.logger.Info("user deleted",
		slog.String("actor", caller.Subject.String()),
		slog.String("target", id.String()),
	)
	s.record(ctx, shared.AuditLog{
		ActorID:  caller.Subject,
		Action:   shared.AuditUserDeleted,
		Entity:   "user",
		EntityID: id.String(),
		Meta:     map[string]any{"self": self},
	})
	return nil
}

// hideMissing keeps not-found from leaking to callers who could not have
// acted on the user anyway.
func (s *Service) hideMissing(caller auth.Identity, err error) error {
	if errors.Is(err, shared.ErrNotFound) && !authz.CanAccessUserManagement(caller.Role) {
		return errManageDenied
	}
	return err
}
