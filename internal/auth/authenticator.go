package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pnar-online/pnar-api/internal/observability"
	"github.com/pnar-online/pnar-api/internal/platform/httpx"
)

const bearerScheme = "bearer"

// Authenticator runs the per-request identity pipeline: extract the bearer
// token, verify it, resolve the subject's current role, attach the identity.
// Each step runs once, in order; the first failure ends the request.
type Authenticator struct {
	codec    *TokenCodec
	resolver *Resolver
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAuthenticator wires the pipeline.
func NewAuthenticator(codec *TokenCodec, resolver *Resolver, logger *slog.Logger, metrics *observability.Metrics) *Authenticator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Authenticator{codec: codec, resolver: resolver, logger: logger, metrics: metrics}
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(h http.Header) (string, bool) {
	raw := strings.TrimSpace(h.Get("Authorization"))
	scheme, token, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// VerifyRequest authenticates a request from its headers.
func (a *Authenticator) VerifyRequest(ctx context.Context, h http.Header) (Identity, error) {
	token, ok := BearerToken(h)
	if !ok {
		a.metrics.AuthOutcome(KindMissingToken.String())
		return Identity{}, ErrMissingToken
	}

	claims, err := a.codec.Verify(token)
	if err != nil {
		a.metrics.AuthOutcome(KindInvalidToken.String())
		a.logger.Debug("bearer token rejected")
		return Identity{}, err
	}

	role, err := a.resolver.Resolve(ctx, claims.Subject)
	if err != nil {
		a.metrics.AuthOutcome(KindUnknownSubject.String())
		a.logger.Info("token subject not resolvable", slog.String("subject", claims.Subject.String()))
		return Identity{}, err
	}

	a.metrics.AuthOutcome("authenticated")
	return Identity{Subject: claims.Subject, Role: role}, nil
}

// Middleware rejects unauthenticated requests before they reach next and
// attaches the resolved Identity to the request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.VerifyRequest(r.Context(), r.Header)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}
