package medauth

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidCredentials marks a login rejected for any credential reason.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDeactivated marks a login or refresh for an inactive account.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrTokenRejected marks a bearer, refresh or reset token that failed validation.
	ErrTokenRejected = errors.New("token rejected")
	// ErrTOTPRequired is returned when two-factor is enabled and no code was sent.
	ErrTOTPRequired = errors.New("totp required")
	// ErrTOTPInvalid is returned for a wrong two-factor code.
	ErrTOTPInvalid = errors.New("invalid totp code")
	// ErrTOTPNotConfigured is returned when enabling two-factor before setup.
	ErrTOTPNotConfigured = errors.New("totp not configured")
	// ErrPermissionDenied is returned by Authorize.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRoleNotSelfAssignable rejects self-registration with a privileged role.
	ErrRoleNotSelfAssignable = errors.New("role cannot be self-assigned")
	// ErrPasswordReuse rejects a new password equal to the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrUserNotFound must be returned by UserStore lookups with no match.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists must be returned by UserStore.CreateUser on a duplicate email.
	ErrUserExists = errors.New("user already exists")
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindAuthentication Kind = iota + 1
	KindAuthorization
	KindValidation
	KindInternal
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindInternal:
		return "internal"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

const internalMessage = "Internal server error"

// Error is the caller-facing error returned by Engine operations. Message is
// safe to show to the client; Err carries the cause for logs and errors.Is.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation errors.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PublicMessage is the message to send to the client. Internal errors never
// expose their detail.
func (e *Error) PublicMessage() string {
	if e.Kind == KindInternal {
		return internalMessage
	}
	return e.Message
}

func authenticationError(message string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Err: cause}
}

func authorizationError(message string, cause error) *Error {
	return &Error{Kind: KindAuthorization, Message: message, Err: cause}
}

func validationError(message string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: cause}
}

func internalError(cause error) *Error {
	return &Error{Kind: KindInternal, Message: internalMessage, Err: cause}
}

func conflictError(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: cause}
}

// KindOf returns the kind of err. Store sentinels map to NotFound and
// Conflict; anything unrecognised is Internal.
func KindOf(err error) Kind {
	var e *Error
	switch {
	case err == nil:
		return 0
	case errors.As(err, &e):
		return e.Kind
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrUserExists):
		return KindConflict
	default:
		return KindInternal
	}
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case 0:
		return http.StatusOK
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.PublicMessage()
	}
	switch {
	case errors.Is(err, ErrUserNotFound):
		return "User not found"
	case errors.Is(err, ErrUserExists):
		return "User with this email already exists"
	}
	return internalMessage
}
