// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/pnar-online/pnar-api/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrValidation      = errors.New("validation failed")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTooManyRequests = errors.New("too many requests")
)

// UnauthenticatedDetail is the only detail ever sent with a 401. Missing,
// invalid and unresolvable credentials must be indistinguishable to clients.
const UnauthenticatedDetail = "authentication required"

// publicError is implemented by errors whose message is safe to show clients.
type publicError interface {
	PublicMessage() string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		Unauthorized(w)
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", publicMessage(err, "insufficient permissions"))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", publicMessage(err, "resource not found"))
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", publicMessage(err, "resource already exists"))
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	case errors.Is(err, ErrTooManyRequests), errors.Is(err, shared.ErrTooManyAttempts):
		Problem(w, http.StatusTooManyRequests, "Too Many Requests", "too many attempts, try again later")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Unauthorized writes the uniform unauthenticated response.
func Unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="pnar"`)
	Problem(w, http.StatusUnauthorized, "Unauthorized", UnauthenticatedDetail)
}

func publicMessage(err error, fallback string) string {
	var pe publicError
	if errors.As(err, &pe) {
		if msg := pe.PublicMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
