package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pnar-online/pnar-api/internal/observability"
	"github.com/pnar-online/pnar-api/internal/roles"
	"github.com/pnar-online/pnar-api/internal/shared"
)

// DefaultRoleLookupTimeout bounds a single role lookup.
const DefaultRoleLookupTimeout = 2 * time.Second

// RoleStore is the persistent source of truth for account roles.
type RoleStore interface {
	// FindRoleBySubject returns the stored role id, or shared.ErrNotFound.
	FindRoleBySubject(ctx context.Context, subject uuid.UUID) (string, error)
}

// Resolver looks up the caller's current role on every request. Roles are
// never cached or read from the token, so a demotion applies to the next request.
type Resolver struct {
	store   RoleStore
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewResolver constructs a Resolver. A non-positive timeout uses DefaultRoleLookupTimeout.
func NewResolver(store RoleStore, logger *slog.Logger, metrics *observability.Metrics, timeout time.Duration) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = DefaultRoleLookupTimeout
	}
	return &Resolver{
		store:   store,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("github.com/pnar-online/pnar-api/internal/auth"),
	}
}

// Resolve returns the current role for subject.
//
// An unknown subject is ErrUnknownSubject. If the request context ends first
// the lookup also fails with ErrUnknownSubject. Any other store failure,
// including the lookup's own deadline, degrades to roles.Lowest(): an
// unavailable authority never yields more privilege than the weakest account.
func (r *Resolver) Resolve(ctx context.Context, subject uuid.UUID) (roles.Role, error) {
	ctx, span := r.tracer.Start(ctx, "auth.resolve_role", trace.WithAttributes(
		attribute.String("auth.subject", subject.String()),
	))
	defer span.End()

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	raw, err := r.store.FindRoleBySubject(lookupCtx, subject)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		r.metrics.RoleLookup("ok", elapsed)
		role := roles.Parse(raw)
		if role == roles.Unknown {
			r.logger.Warn("stored role not recognised", slog.String("subject", subject.String()), slog.String("role", raw))
		}
		span.SetAttributes(attribute.String("auth.role", role.String()))
		return role, nil
	case errors.Is(err, shared.ErrNotFound):
		r.metrics.RoleLookup("not_found", elapsed)
		span.SetStatus(codes.Error, "subject not found")
		return roles.Unknown, ErrUnknownSubject
	case ctx.Err() != nil:
		r.metrics.RoleLookup("cancelled", elapsed)
		span.SetStatus(codes.Error, "request ended during role lookup")
		return roles.Unknown, ErrUnknownSubject
	default:
		r.metrics.RoleLookup("unavailable", elapsed)
		r.metrics.AuthOutcome("authority_unavailable")
		r.logger.Warn("role lookup failed, using lowest privilege",
			slog.String("subject", subject.String()),
			slog.Any("error", err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "role store unavailable")
		return roles.Lowest(), nil
	}
}
