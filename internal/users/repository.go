package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pnar-online/pnar-api/internal/platform/db"
	"github.com/pnar-online/pnar-api/internal/roles"
	"github.com/pnar-online/pnar-api/internal/shared"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	db.TxBeginner
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db DB
}

// NewRepository constructs a repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const (
	userColumns     = `id, email, full_name, role, is_active, created_at, updated_at`
	uniqueViolation = "23505"
)

// Get returns a single user.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns the user registered under email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a user. A taken email yields shared.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, in NewUser) (*User, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password, full_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+userColumns,
		uuid.New(), in.Email, in.PasswordHash, in.FullName, string(in.Role), in.IsActive, time.Now().UTC(),
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &user, nil
}

// List returns one page of users whose stored role, normalized the way
// roles.Parse does, is not in hidden, newest first, and the total number of
// matching users. An empty hidden lists everyone.
func (r *Repository) List(ctx context.Context, hidden []roles.Role, limit, offset int) ([]User, int, error) {
	ids := make([]string, len(hidden))
	for i, role := range hidden {
		ids[i] = string(role)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE NOT (lower(btrim(role)) = ANY($1))`, ids).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE NOT (lower(btrim(role)) = ANY($1))
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, ids, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	out := make([]User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("users: list rows: %w", err)
	}
	return out, total, nil
}

// UpdateRole locks the target, runs check against its current role and, if
// check passes, stores the new role.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role roles.Role, check RoleCheck) (*User, error) {
	var updated User
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockRole(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := check(current); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			UPDATE users SET role = $2, updated_at = $3
			WHERE id = $1
			RETURNING `+userColumns, id, string(role), time.Now().UTC())
		updated, err = scanUser(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpdateProfile locks the target, runs check against its current role and
// writes the non-nil fields of changes.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, changes ProfileChanges, check RoleCheck) (*User, error) {
	var updated User
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockRole(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := check(current); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			UPDATE users SET
				email = COALESCE($2, email),
				full_name = COALESCE($3, full_name),
				updated_at = $4
			WHERE id = $1
			RETURNING `+userColumns, id, changes.Email, changes.FullName, time.Now().UTC())
		updated, err = scanUser(row)
		return err
	})
	if err != nil {
		return nil, mapWriteError(err)
	}
	return &updated, nil
}

// UpdatePassword locks the target, runs check against its current role and
// password hash and stores hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, check CredentialCheck) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var raw, current string
		err := tx.QueryRow(ctx, `SELECT role, password FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&raw, &current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("users: lock: %w", err)
		}
		if err := check(roles.Parse(raw), current); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET password = $2, updated_at = $3 WHERE id = $1`, id, hash, time.Now().UTC()); err != nil {
			return fmt.Errorf("users: update password: %w", err)
		}
		return nil
	})
}

// Delete locks the target, runs check against its current role and removes it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, check RoleCheck) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		current, err := lockRole(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := check(current); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("users: delete: %w", err)
		}
		return nil
	})
}

func lockRole(ctx context.Context, tx pgx.Tx, id uuid.UUID) (roles.Role, error) {
	var raw string
	err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return roles.Unknown, shared.ErrNotFound
		}
		return roles.Unknown, fmt.Errorf("users: lock: %w", err)
	}
	return roles.Parse(raw), nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return shared.ErrDuplicate
	}
	return err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user User
		role string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: scan: %w", err)
	}
	user.Role = roles.Parse(role)
	return user, nil
}

var _ RepositoryPort = (*Repository)(nil)
