// Package autherr defines the closed set of error kinds produced by the auth core.
// Kinds are mapped to transport status codes only at the boundary via HTTPStatus and PublicCode.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates auth core errors.
type Kind string

const (
	InvalidCredentials     Kind = "invalid_credentials"
	TokenMalformed         Kind = "token_malformed"
	TokenInvalidSignature  Kind = "token_invalid_signature"
	TokenExpired           Kind = "token_expired"
	TokenBlacklisted       Kind = "token_blacklisted"
	RefreshTokenStale      Kind = "refresh_token_stale"
	NoToken                Kind = "no_token"
	SessionNotFound        Kind = "session_not_found"
	InsufficientRole       Kind = "insufficient_role"
	InsufficientPermission Kind = "insufficient_permission"
	ResetTokenInvalid      Kind = "reset_token_invalid"
	DependencyUnavailable  Kind = "dependency_unavailable"
	EmailAlreadyRegistered Kind = "email_already_registered"
	InvalidInput           Kind = "invalid_input"
	WeakInput              Kind = "weak_input"
)

// Error is a tagged auth error. Two Errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidCredentials     = &Error{Kind: InvalidCredentials, Message: "invalid email or password"}
	ErrTokenMalformed         = &Error{Kind: TokenMalformed, Message: "token malformed"}
	ErrTokenInvalidSignature  = &Error{Kind: TokenInvalidSignature, Message: "token signature invalid"}
	ErrTokenExpired           = &Error{Kind: TokenExpired, Message: "token expired"}
	ErrTokenBlacklisted       = &Error{Kind: TokenBlacklisted, Message: "token revoked"}
	ErrRefreshTokenStale      = &Error{Kind: RefreshTokenStale, Message: "refresh token is not current"}
	ErrNoToken                = &Error{Kind: NoToken, Message: "missing bearer token"}
	ErrSessionNotFound        = &Error{Kind: SessionNotFound, Message: "session not found"}
	ErrInsufficientRole       = &Error{Kind: InsufficientRole, Message: "insufficient role"}
	ErrInsufficientPermission = &Error{Kind: InsufficientPermission, Message: "insufficient permission"}
	ErrResetTokenInvalid      = &Error{Kind: ResetTokenInvalid, Message: "reset token invalid or expired"}
	ErrDependencyUnavailable  = &Error{Kind: DependencyUnavailable, Message: "dependency unavailable"}
	ErrEmailAlreadyRegistered = &Error{Kind: EmailAlreadyRegistered, Message: "email already registered"}
	ErrInvalidInput           = &Error{Kind: InvalidInput, Message: "invalid input"}
	ErrWeakInput              = &Error{Kind: WeakInput, Message: "input does not meet policy"}
)

// New returns an Error of kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an Error of kind carrying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Unavailable wraps a store or cache failure during op as DependencyUnavailable.
// A nil cause yields nil.
func Unavailable(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var ae *Error
	if errors.As(cause, &ae) && ae.Kind == DependencyUnavailable {
		return cause
	}
	return &Error{Kind: DependencyUnavailable, Message: op, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// HTTPStatus maps a kind to an HTTP status. Unknown kinds map to 500.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidCredentials, TokenMalformed, TokenInvalidSignature, TokenExpired,
		TokenBlacklisted, RefreshTokenStale, NoToken:
		return http.StatusUnauthorized
	case InsufficientRole, InsufficientPermission:
		return http.StatusForbidden
	case ResetTokenInvalid, InvalidInput, WeakInput:
		return http.StatusBadRequest
	case SessionNotFound:
		return http.StatusNotFound
	case EmailAlreadyRegistered:
		return http.StatusConflict
	case DependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicCode is the error code exposed to clients. Every 401 kind collapses to "unauthorized"
// so callers cannot observe which step of authentication failed.
func PublicCode(kind Kind) string {
	switch HTTPStatus(kind) {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return string(kind)
	}
}

// PublicMessage is the client-facing message for err.
func PublicMessage(err error) string {
	kind := KindOf(err)
	switch HTTPStatus(kind) {
	case http.StatusUnauthorized:
		if kind == InvalidCredentials {
			return "invalid email or password"
		}
		return "authentication required"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	case http.StatusInternalServerError:
		return "internal error"
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return string(kind)
}
