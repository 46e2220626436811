package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pnar-online/pnar-api/internal/auth"
	"github.com/pnar-online/pnar-api/internal/shared"
	_ "github.com/pnar-online/pnar-api/testing"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// t0 is a whole-second instant so issued claims round-trip exactly.
var t0 = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newCodec(t *testing.T, clock *fakeClock) *auth.TokenCodec {
	t.Helper()
	codec, err := auth.NewTokenCodec(testSecret, auth.WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}

// stubRoleStore answers role lookups from a map, or with err when set.
type stubRoleStore struct {
	mu    sync.Mutex
	roles map[uuid.UUID]string
	err   error
	block bool
	calls int
}

func (s *stubRoleStore) FindRoleBySubject(ctx context.Context, subject uuid.UUID) (string, error) {
	s.mu.Lock()
	s.calls++
	block, err := s.block, s.err
	role, ok := s.roles[subject]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

func (s *stubRoleStore) set(subject uuid.UUID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles == nil {
		s.roles = make(map[uuid.UUID]string)
	}
	s.roles[subject] = role
}
