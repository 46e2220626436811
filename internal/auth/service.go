package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pnar-online/pnar-api/internal/roles"
	"github.com/pnar-online/pnar-api/internal/shared"
)

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// Service wraps account business rules: registration, sign-in and profile.
type Service struct {
	repo     AccountStore
	codec    *TokenCodec
	throttle *LoginThrottle
	logger   *slog.Logger
	cost     int
}

// NewService constructs a new Service. throttle may be nil.
func NewService(repo AccountStore, codec *TokenCodec, throttle *LoginThrottle, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, codec: codec, throttle: throttle, logger: logger, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost, used by tests to keep hashing fast.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword derives the stored bcrypt hash for password.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// PasswordMatches reports whether password produces hash.
func PasswordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Register creates an account with the lowest role and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, TokenPair, error) {
	email := NormalizeEmail(in.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, TokenPair{}, shared.ErrDuplicate
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, TokenPair{}, err
	}

	account := &Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         roles.Lowest(),
		IsActive:     true,
	}
	if name := strings.TrimSpace(in.FullName); name != "" {
		account.FullName = &name
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.issuePair(account.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("account registered", slog.String("user_id", account.ID.String()))
	return account, pair, nil
}

// Login validates email/password credentials and issues a token pair.
// Unknown emails, inactive accounts and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*Account, TokenPair, error) {
	email = NormalizeEmail(email)
	if !s.throttle.Allowed(ctx, email) {
		return nil, TokenPair{}, shared.ErrTooManyAttempts
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		// Burn a comparison so response time does not reveal unknown emails.
		_ = bcrypt.CompareHashAndPassword(placeholderHash(), []byte(password))
		s.throttle.Fail(ctx, email)
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	if !PasswordMatches(account.PasswordHash, password) || !account.IsActive {
		s.throttle.Fail(ctx, email)
		return nil, TokenPair{}, shared.ErrInvalidCredentials
	}
	s.throttle.Reset(ctx, email)

	pair, err := s.issuePair(account.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return account, pair, nil
}

// Profile returns the account for an authenticated subject.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) issuePair(subject uuid.UUID) (TokenPair, error) {
	access, err := s.codec.IssueAccessToken(subject)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.IssueRefreshToken(subject)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.codec.AccessTTL()}, nil
}

var (
	placeholderOnce sync.Once
	placeholder     []byte
)

func placeholderHash() []byte {
	placeholderOnce.Do(func() {
		placeholder, _ = bcrypt.GenerateFromPassword([]byte("pnar-placeholder-password"), bcrypt.DefaultCost)
	})
	return placeholder
}
