package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttleKeyPrefix = "pnar:login:failures:"

// LoginThrottle counts failed sign-ins per email in Redis and locks the email
// out once the count reaches max within window. It only slows credential
// guessing; it stores nothing about issued tokens. Redis failures fail open so
// an outage never blocks legitimate sign-in. A nil *LoginThrottle is a no-op.
type LoginThrottle struct {
	client *redis.Client
	max    int64
	window time.Duration
	logger *slog.Logger
}

// NewLoginThrottle constructs a throttle.
func NewLoginThrottle(client *redis.Client, max int, window time.Duration, logger *slog.Logger) *LoginThrottle {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LoginThrottle{client: client, max: int64(max), window: window, logger: logger}
}

func throttleKey(email string) string {
	return throttleKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Allowed reports whether another attempt for email may proceed.
func (t *LoginThrottle) Allowed(ctx context.Context, email string) bool {
	if t == nil || t.max <= 0 {
		return true
	}
	count, err := t.client.Get(ctx, throttleKey(email)).Int64()
	if err != nil {
		if err != redis.Nil {
			t.logger.Warn("login throttle read", slog.Any("error", err))
		}
		return true
	}
	return count < t.max
}

// Fail records a failed attempt for email. The counter and its expiry are
// written in one MULTI block; EXPIRE NX starts the window on the first failure
// and repairs a key that somehow lost its TTL.
func (t *LoginThrottle) Fail(ctx context.Context, email string) {
	if t == nil || t.max <= 0 {
		return
	}
	key := throttleKey(email)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, t.window)
		return nil
	})
	if err != nil {
		t.logger.Warn("login throttle fail", slog.Any("error", err))
	}
}

// Reset clears the failure count after a successful sign-in.
func (t *LoginThrottle) Reset(ctx context.Context, email string) {
	if t == nil || t.max <= 0 {
		return
	}
	if err := t.client.Del(ctx, throttleKey(email)).Err(); err != nil {
		t.logger.Warn("login throttle reset", slog.Any("error", err))
	}
}
