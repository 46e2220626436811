package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pnar-online/pnar-api/internal/roles"
	"github.com/pnar-online/pnar-api/internal/shared"
)

const uniqueViolation = "23505"

// Querier is the subset of *pgxpool.Pool used by the repository.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AccountStore defines persistence operations for the account flow.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
}

// PGRepository implements AccountStore and RoleStore on the users table.
type PGRepository struct {
	db Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db Querier) *PGRepository {
	return &PGRepository{db: db}
}

const accountColumns = `id, email, password, full_name, role, is_active, created_at, updated_at`

// FindRoleBySubject returns the stored role id for subject.
func (r *PGRepository) FindRoleBySubject(ctx context.Context, subject uuid.UUID) (string, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, subject).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("auth: find role: %w", err)
	}
	return role, nil
}

// FindByEmail fetches an account by its normalised email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE email = $1`, email)
	return scanAccount(row)
}

// FindByID fetches an account by id.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

// CreateAccount inserts a new account. A taken email yields shared.ErrDuplicate.
func (r *PGRepository) CreateAccount(ctx context.Context, account *Account) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password, full_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		account.ID, account.Email, account.PasswordHash, account.FullName, string(account.Role), account.IsActive, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shared.ErrDuplicate
		}
		return fmt.Errorf("auth: create account: %w", err)
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		acc  Account
		role string
	)
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.FullName, &role, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: scan account: %w", err)
	}
	acc.Role = roles.Parse(role)
	return &acc, nil
}

var (
	_ AccountStore = (*PGRepository)(nil)
	_ RoleStore    = (*PGRepository)(nil)
)
