package auth

import (
	"errors"

	"github.com/pnar-online/pnar-api/internal/platform/httpx"
)

// Kind classifies an authentication or authorization failure.
type Kind uint8

const (
	// KindMissingToken: no Authorization header or not a bearer credential.
	KindMissingToken Kind = iota + 1
	// KindInvalidToken: bad signature, malformed claims or expired. Expiry is
	// deliberately not distinguished from forgery.
	KindInvalidToken
	// KindUnknownSubject: the token is genuine but its subject no longer resolves.
	KindUnknownSubject
	// KindNotAuthenticated: a handler asked for an identity the pipeline never attached.
	KindNotAuthenticated
	// KindInsufficientPrivilege: a valid identity lacks the rank or ownership required.
	KindInsufficientPrivilege
)

func (k Kind) String() string {
	switch k {
	case KindMissingToken:
		return "missing_token"
	case KindInvalidToken:
		return "invalid_token"
	case KindUnknownSubject:
		return "unknown_subject"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindInsufficientPrivilege:
		return "insufficient_privilege"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the auth pipeline and guards.
// Every kind except KindInsufficientPrivilege matches httpx.ErrUnauthorized;
// KindInsufficientPrivilege matches httpx.ErrForbidden.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "auth: " + e.Kind.String()
	}
	return "auth: " + e.Kind.String() + ": " + e.Message
}

// PublicMessage is shown to clients for forbidden responses only.
func (e *Error) PublicMessage() string {
	return e.Message
}

// Is matches errors of the same kind and the transport sentinel for the kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Kind == e.Kind
	}
	if e.Kind == KindInsufficientPrivilege {
		return target == httpx.ErrForbidden
	}
	return target == httpx.ErrUnauthorized
}

// Sentinels for errors.Is checks. Returned errors may carry a different message.
var (
	ErrMissingToken          = &Error{Kind: KindMissingToken}
	ErrInvalidToken          = &Error{Kind: KindInvalidToken}
	ErrUnknownSubject        = &Error{Kind: KindUnknownSubject}
	ErrNotAuthenticated      = &Error{Kind: KindNotAuthenticated, Message: "user not authenticated"}
	ErrInsufficientPrivilege = &Error{Kind: KindInsufficientPrivilege}
)

// Forbidden returns an insufficient-privilege error with a client-safe message.
func Forbidden(message string) error {
	return &Error{Kind: KindInsufficientPrivilege, Message: message}
}

// IsUnauthenticated reports whether err means "no valid identity".
func IsUnauthenticated(err error) bool {
	return errors.Is(err, httpx.ErrUnauthorized)
}

// IsForbidden reports whether err means "valid identity, not allowed".
func IsForbidden(err error) bool {
	return errors.Is(err, httpx.ErrForbidden)
}
