package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTTL is the lifetime of tokens presented on every request.
	DefaultAccessTTL = 24 * time.Hour
	// DefaultRefreshTTL is the lifetime of long-lived refresh tokens.
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Claims is the verified content of a bearer token. The role is intentionally
// absent; it is looked up on every request.
type Claims struct {
	Subject   uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies HS256-signed, time-bounded bearer tokens.
// It holds the process-wide secret and is safe for concurrent use.
type TokenCodec struct {
	secret     []byte
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock injects the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

// WithAccessTTL overrides DefaultAccessTTL.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *TokenCodec) { c.accessTTL = ttl }
}

// WithRefreshTTL overrides DefaultRefreshTTL.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *TokenCodec) { c.refreshTTL = ttl }
}

// NewTokenCodec constructs a codec. The secret is copied and never exposed.
func NewTokenCodec(secret []byte, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: token secret must not be empty")
	}
	c := &TokenCodec{
		secret:     append([]byte(nil), secret...),
		now:        time.Now,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.accessTTL < time.Second || c.refreshTTL < time.Second {
		return nil, errors.New("auth: token ttl must be at least one second")
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// AccessTTL reports the lifetime of access tokens.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// IssueAccessToken mints a short-lived token for subject.
func (c *TokenCodec) IssueAccessToken(subject uuid.UUID) (string, error) {
	return c.issue(subject, c.accessTTL)
}

// IssueRefreshToken mints a long-lived token for subject.
func (c *TokenCodec) IssueRefreshToken(subject uuid.UUID) (string, error) {
	return c.issue(subject, c.refreshTTL)
}

func (c *TokenCodec) issue(subject uuid.UUID, ttl time.Duration) (string, error) {
	if subject == uuid.Nil {
		return "", errors.New("auth: cannot issue token for nil subject")
	}
	// Claims carry whole seconds; truncate so the signed window is [iat, iat+ttl).
	issuedAt := c.now().UTC().Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl.Truncate(time.Second))),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", errors.New("auth: sign token")
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the claims. All failures,
// including expiry, yield ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (Claims, error) {
	var registered jwt.RegisteredClaims
	parsed, err := c.parser.ParseWithClaims(token, &registered, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	subject, err := uuid.Parse(registered.Subject)
	if err != nil || subject == uuid.Nil {
		return Claims{}, ErrInvalidToken
	}
	claims := Claims{Subject: subject, ExpiresAt: registered.ExpiresAt.Time}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	return claims, nil
}
