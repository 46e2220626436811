package users_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnar-online/pnar-api/internal/roles"
	"github.com/pnar-online/pnar-api/internal/shared"
	"github.com/pnar-online/pnar-api/internal/users"
)

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// fakeRows serves scripted rows to scanUser.
type fakeRows struct {
	pgx.Rows
	rows []scanFunc
	next int
}

func (r *fakeRows) Next() bool {
	r.next++
	return r.next <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error { return r.rows[r.next-1](dest...) }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close()                 {}

type call struct {
	sql  string
	args []any
}

// fakeDB answers QueryRow calls from a queue and records every statement.
// Transactions share its state; only the methods the repository uses exist.
type fakeDB struct {
	rows       []scanFunc
	list       *fakeRows
	calls      []call
	committed  bool
	rolledBack bool
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.calls = append(d.calls, call{sql, args})
	if len(d.rows) == 0 {
		return scanFunc(func(...any) error { return errors.New("unexpected query") })
	}
	row := d.rows[0]
	d.rows = d.rows[1:]
	return row
}

func (d *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.calls = append(d.calls, call{sql, args})
	return d.list, nil
}

func (d *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.calls = append(d.calls, call{sql, args})
	return pgconn.NewCommandTag("OK"), nil
}

func (d *fakeDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return &fakeTx{db: d}, nil
}

type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.db.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.db.committed {
		t.db.rolledBack = true
	}
	return nil
}

func roleRow(stored string) scanFunc {
	return func(dest ...any) error {
		*dest[0].(*string) = stored
		return nil
	}
}

func userRow(id uuid.UUID, email, role string) scanFunc {
	return func(dest ...any) error {
		*dest[0].(*uuid.UUID) = id
		*dest[1].(*string) = email
		*dest[3].(*string) = role
		*dest[4].(*bool) = true
		*dest[5].(*time.Time) = time.Unix(0, 0).UTC()
		*dest[6].(*time.Time) = time.Unix(0, 0).UTC()
		return nil
	}
}

func noRows(...any) error { return pgx.ErrNoRows }

func TestRepositoryUpdateRoleChecksLockedRole(t *testing.T) {
	id := uuid.New()
	fdb := &fakeDB{rows: []scanFunc{roleRow(" Admin"), userRow(id, "a@pnar.test", "user")}}

	var seen roles.Role
	got, err := users.NewRepository(fdb).UpdateRole(context.Background(), id, roles.User, func(current roles.Role) error {
		seen = current
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, roles.Admin, seen, "stored roles are parsed before the check")
	assert.Equal(t, roles.User, got.Role)
	assert.True(t, fdb.committed)

	require.Len(t, fdb.calls, 2)
	assert.Contains(t, fdb.calls[0].sql, "FOR UPDATE")
	assert.Contains(t, fdb.calls[1].sql, "UPDATE users SET role")
	assert.Equal(t, "user", fdb.calls[1].args[1])
}

func TestRepositoryLockMissingIsNotFound(t *testing.T) {
	fdb := &fakeDB{rows: []scanFunc{noRows}}
	called := false

	_, err := users.NewRepository(fdb).UpdateRole(context.Background(), uuid.New(), roles.User, func(roles.Role) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.False(t, called)
	assert.True(t, fdb.rolledBack)
}

func TestRepositoryRejectedCheckWritesNothing(t *testing.T) {
	denied := errors.New("denied")
	repo := func(fdb *fakeDB) *users.Repository { return users.NewRepository(fdb) }

	fdb := &fakeDB{rows: []scanFunc{roleRow("superadmin")}}
	_, err := repo(fdb).UpdateRole(context.Background(), uuid.New(), roles.User, func(roles.Role) error { return denied })
	assert.ErrorIs(t, err, denied)
	assert.Len(t, fdb.calls, 1)
	assert.True(t, fdb.rolledBack)

	fdb = &fakeDB{rows: []scanFunc{roleRow("superadmin")}}
	err = repo(fdb).Delete(context.Background(), uuid.New(), func(roles.Role) error { return denied })
	assert.ErrorIs(t, err, denied)
	assert.Len(t, fdb.calls, 1)

	fdb = &fakeDB{rows: []scanFunc{roleRow("moderator")}}
	require.NoError(t, repo(fdb).Delete(context.Background(), uuid.New(), func(roles.Role) error { return nil }))
	require.Len(t, fdb.calls, 2)
	assert.Contains(t, fdb.calls[1].sql, "DELETE FROM users")
	assert.True(t, fdb.committed)
}

func TestRepositoryUpdatePasswordSeesStoredHash(t *testing.T) {
	fdb := &fakeDB{rows: []scanFunc{func(dest ...any) error {
		*dest[0].(*string) = "contributor"
		*dest[1].(*string) = "stored-hash"
		return nil
	}}}

	var role roles.Role
	var hash string
	err := users.NewRepository(fdb).UpdatePassword(context.Background(), uuid.New(), "new-hash", func(r roles.Role, h string) error {
		role, hash = r, h
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, roles.Contributor, role)
	assert.Equal(t, "stored-hash", hash)
	require.Len(t, fdb.calls, 2)
	assert.Contains(t, fdb.calls[0].sql, "FOR UPDATE")
	assert.Equal(t, "new-hash", fdb.calls[1].args[1])
}

func TestRepositoryListExcludesHiddenRoles(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	fdb := &fakeDB{
		rows: []scanFunc{func(dest ...any) error {
			*dest[0].(*int) = 7
			return nil
		}},
		list: &fakeRows{rows: []scanFunc{
			userRow(first, "a@pnar.test", "admin"),
			userRow(second, "legacy@pnar.test", "translator"),
		}},
	}

	list, total, err := users.NewRepository(fdb).List(context.Background(), []roles.Role{roles.SuperAdmin}, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, roles.Unknown, list[1].Role)

	require.Len(t, fdb.calls, 2)
	for _, c := range fdb.calls {
		assert.Contains(t, c.sql, "NOT (lower(btrim(role)) = ANY($1))")
		assert.Equal(t, []string{"superadmin"}, c.args[0])
	}
	assert.Equal(t, []any{[]string{"superadmin"}, 2, 4}, fdb.calls[1].args)
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	fdb := &fakeDB{rows: []scanFunc{func(...any) error { return &pgconn.PgError{Code: "23505"} }}}
	_, err := users.NewRepository(fdb).Create(context.Background(), users.NewUser{Email: "dup@pnar.test", Role: roles.User})
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}
