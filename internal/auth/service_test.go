package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pnar-online/pnar-api/internal/auth"
	"github.com/pnar-online/pnar-api/internal/roles"
	"github.com/pnar-online/pnar-api/internal/shared"
)

// memAccounts is an in-memory AccountStore that also answers role lookups,
// mirroring PGRepository.
type memAccounts struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*auth.Account
	byEmail  map[string]uuid.UUID
	createFn func(*auth.Account) error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[uuid.UUID]*auth.Account{}, byEmail: map[string]uuid.UUID{}}
}

func (m *memAccounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	acc := *m.byID[id]
	return &acc, nil
}

func (m *memAccounts) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *acc
	return &out, nil
}

func (m *memAccounts) CreateAccount(ctx context.Context, account *auth.Account) error {
	if m.createFn != nil {
		if err := m.createFn(account); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[account.Email]; ok {
		return shared.ErrDuplicate
	}
	account.CreatedAt = t0
	account.UpdatedAt = t0
	stored := *account
	m.byID[account.ID] = &stored
	m.byEmail[account.Email] = account.ID
	return nil
}

func (m *memAccounts) FindRoleBySubject(ctx context.Context, subject uuid.UUID) (string, error) {
	acc, err := m.FindByID(ctx, subject)
	if err != nil {
		return "", err
	}
	return string(acc.Role), nil
}

func (m *memAccounts) add(t *testing.T, email, password string, role roles.Role, active bool) *auth.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	acc := &auth.Account{ID: uuid.New(), Email: email, PasswordHash: string(hash), Role: role, IsActive: active}
	require.NoError(t, m.CreateAccount(context.Background(), acc))
	return acc
}

func newService(t *testing.T, store auth.AccountStore, throttle *auth.LoginThrottle) (*auth.Service, *auth.TokenCodec) {
	t.Helper()
	codec := newCodec(t, &fakeClock{now: t0})
	return auth.NewService(store, codec, throttle, nil).WithHashCost(bcrypt.MinCost), codec
}

func TestRegisterCreatesLowestRoleAndIssuesTokens(t *testing.T) {
	store := newMemAccounts()
	svc, codec := newService(t, store, nil)

	acc, pair, err := svc.Register(context.Background(), auth.RegisterInput{
		Email:    "  New@Pnar.Test ",
		Password: "correct horse",
		FullName: "Ka Synshar",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@pnar.test", acc.Email)
	assert.Equal(t, roles.User, acc.Role)
	require.NotNil(t, acc.FullName)
	assert.Equal(t, "Ka Synshar", *acc.FullName)
	assert.NotEqual(t, "correct horse", acc.PasswordHash)
	assert.Equal(t, 24*time.Hour, pair.ExpiresIn)

	claims, err := codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, claims.Subject)

	refresh, err := codec.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, refresh.ExpiresAt.After(claims.ExpiresAt))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newMemAccounts()
	store.add(t, "taken@pnar.test", "password1", roles.User, true)
	svc, _ := newService(t, store, nil)

	_, _, err := svc.Register(context.Background(), auth.RegisterInput{Email: "Taken@pnar.test", Password: "password2"})
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestRegisterPropagatesStoreRace(t *testing.T) {
	store := newMemAccounts()
	store.createFn = func(*auth.Account) error { return shared.ErrDuplicate }
	svc, _ := newService(t, store, nil)

	_, _, err := svc.Register(context.Background(), auth.RegisterInput{Email: "race@pnar.test", Password: "password1"})
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestLogin(t *testing.T) {
	store := newMemAccounts()
	active := store.add(t, "active@pnar.test", "password1", roles.Moderator, true)
	store.add(t, "inactive@pnar.test", "password1", roles.Admin, false)
	svc, codec := newService(t, store, nil)
	ctx := context.Background()

	acc, pair, err := svc.Login(ctx, "ACTIVE@pnar.test", "password1")
	require.NoError(t, err)
	assert.Equal(t, active.ID, acc.ID)
	claims, err := codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, active.ID, claims.Subject)

	for name, creds := range map[string][2]string{
		"wrong password": {"active@pnar.test", "password2"},
		"unknown email":  {"nobody@pnar.test", "password1"},
		"inactive":       {"inactive@pnar.test", "password1"},
	} {
		_, _, err := svc.Login(ctx, creds[0], creds[1])
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials, name)
	}
}

func TestLoginLockout(t *testing.T) {
	store := newMemAccounts()
	store.add(t, "target@pnar.test", "password1", roles.User, true)
	throttle, _ := newThrottle(t, 2)
	svc, _ := newService(t, store, throttle)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := svc.Login(ctx, "target@pnar.test", "nope-nope")
		assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	}
	_, _, err := svc.Login(ctx, "target@pnar.test", "password1")
	assert.ErrorIs(t, err, shared.ErrTooManyAttempts)
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	store := newMemAccounts()
	store.add(t, "target@pnar.test", "password1", roles.User, true)
	throttle, _ := newThrottle(t, 2)
	svc, _ := newService(t, store, throttle)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "target@pnar.test", "nope-nope")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "target@pnar.test", "password1")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "target@pnar.test", "nope-nope")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "target@pnar.test", "password1")
	require.NoError(t, err)
}

func TestProfile(t *testing.T) {
	store := newMemAccounts()
	acc := store.add(t, "me@pnar.test", "password1", roles.Contributor, true)
	svc, _ := newService(t, store, nil)

	got, err := svc.Profile(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.Email, got.Email)

	_, err = svc.Profile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
