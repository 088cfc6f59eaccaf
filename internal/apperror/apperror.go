// Package apperror defines the client-facing error taxonomy. Every error that
// reaches the HTTP boundary is either an *Error (rendered as-is) or anything
// else (rendered as a generic 500).
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by the class of failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindConflict
	KindNotFound
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error codes shared with clients.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeEmailExists         = "EMAIL_EXISTS"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeAccountInactive     = "ACCOUNT_INACTIVE"
	CodeRefreshRequired     = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeAuthError           = "AUTH_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a failure with a stable code, an HTTP status and a safe message.
// Err carries the underlying cause for logs; it is never shown to clients
// outside development mode.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Details []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code so callers can use errors.Is with the
// constructors below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// New builds an error of the given kind.
func New(kind Kind, status int, code, message string) *Error {
	return &Error{Kind: kind, Status: status, Code: code, Message: message}
}

func Validation(message string, details ...FieldError) *Error {
	e := New(KindValidation, http.StatusBadRequest, CodeValidation, message)
	e.Details = details
	return e
}

func EmailExists() *Error {
	return New(KindConflict, http.StatusConflict, CodeEmailExists, "An account with this email already exists")
}

func InvalidCredentials() *Error {
	return New(KindAuthentication, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
}

func AccountInactive() *Error {
	return New(KindAuthentication, http.StatusUnauthorized, CodeAccountInactive, "Account has been deactivated")
}

func RefreshTokenRequired() *Error {
	return New(KindAuthentication, http.StatusUnauthorized, CodeRefreshRequired, "Refresh token is required")
}

func InvalidRefreshToken() *Error {
	return New(KindAuthentication, http.StatusUnauthorized, CodeInvalidRefreshToken, "Invalid or expired refresh token")
}

func Unauthorized() *Error {
	return New(KindAuthentication, http.StatusUnauthorized, CodeUnauthorized, "Access token required")
}

func TokenExpired() *Error {
	return New(KindAuthentication, http.StatusForbidden, CodeTokenExpired, "Access token expired")
}

func InvalidToken() *Error {
	return New(KindAuthentication, http.StatusForbidden, CodeInvalidToken, "Invalid access token")
}

func UserInactiveOrMissing() *Error {
	return New(KindAuthentication, http.StatusUnauthorized, CodeUserNotFound, "User not found or inactive")
}

func Forbidden() *Error {
	return New(KindAuthorization, http.StatusForbidden, CodeForbidden, "Insufficient permissions")
}

func AuthError(cause error) *Error {
	return New(KindInternal, http.StatusInternalServerError, CodeAuthError, "Authorization error").Wrap(cause)
}

func NotFound(message string) *Error {
	return New(KindNotFound, http.StatusNotFound, CodeNotFound, message)
}

func UserNotFound() *Error {
	return New(KindNotFound, http.StatusNotFound, CodeUserNotFound, "User not found")
}

func RateLimited(code, message string) *Error {
	if code == "" {
		code = CodeRateLimited
	}
	return New(KindRateLimited, http.StatusTooManyRequests, code, message)
}

func Internal(cause error) *Error {
	return New(KindInternal, http.StatusInternalServerError, CodeInternal, "Internal server error").Wrap(cause)
}
