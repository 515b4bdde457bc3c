package phonauth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an Engine error for the transport boundary.
type ErrorKind uint8

const (
	// KindInternal is any fault without a more specific kind.
	KindInternal ErrorKind = iota
	// KindValidation covers malformed or duplicate input.
	KindValidation
	// KindAuthentication covers bad credentials and missing, invalid or
	// superseded tokens.
	KindAuthentication
	// KindNotFound is returned when a token subject no longer exists.
	KindNotFound
	// KindRateLimited is returned when the caller exceeded the request window.
	KindRateLimited
	// KindPersistence wraps a backing-store failure.
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Error is the typed error every Engine operation returns. Message is safe
// to show to clients; Err is the cause and is never rendered.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by identity and bare kind templates by kind, so
// errors.Is(err, &Error{Kind: KindValidation}) works for any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	// ErrInvalidCredentials is returned for an unknown email, an account
	// without a local password or a wrong password.
	ErrInvalidCredentials = newError(KindAuthentication, "Incorrect email or password")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = newError(KindValidation, "Email already registered")
	// ErrEmailNotVerified is returned when the identity provider does not
	// vouch for the email.
	ErrEmailNotVerified = newError(KindValidation, "Email not verified")
	// ErrRefreshTokenMissing is returned when refresh is called without a token.
	ErrRefreshTokenMissing = newError(KindAuthentication, "Refresh token is missing")
	// ErrInvalidToken covers expired, malformed, badly signed and superseded
	// refresh tokens alike.
	ErrInvalidToken = newError(KindAuthentication, "Invalid token")
	// ErrUserNotFound is returned when a refresh token names a deleted user.
	ErrUserNotFound = newError(KindNotFound, "User not found")
	// ErrDeviceMissing is returned by Logout without a User-Agent.
	ErrDeviceMissing = newError(KindValidation, "Device info is missing")
	// ErrSessionMissing is returned by Logout when the device has no session.
	ErrSessionMissing = newError(KindValidation, "Refresh token is missing")
	// ErrCredentialsInvalid is returned by Authenticate for any bad bearer token.
	ErrCredentialsInvalid = newError(KindAuthentication, "Could not validate credentials")
	// ErrRateLimited is returned by CheckRate.
	ErrRateLimited = newError(KindRateLimited, "Too many requests")
	// ErrIdentityRejected is returned when the provider refuses the code.
	ErrIdentityRejected = newError(KindValidation, "Authorization code rejected")
	// ErrIdentityUnavailable is returned when the provider cannot be reached.
	ErrIdentityUnavailable = newError(KindInternal, "Identity provider unavailable")
	// ErrFederationDisabled is returned by LoginWithGoogle without a provider.
	ErrFederationDisabled = newError(KindValidation, "Google login is not enabled")
	// ErrEngineNotReady is returned when the Engine was not built by Builder.
	ErrEngineNotReady = newError(KindInternal, "engine not initialized")
)

// validationError builds a 400 with a client-facing message.
func validationError(msg string) error {
	return newError(KindValidation, msg)
}

// persistenceError wraps a store failure. The cause stays reachable via
// errors.Is and errors.As.
func persistenceError(op string, err error) error {
	return &Error{Kind: KindPersistence, Message: "Internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Kind != KindPersistence {
		return e.Message
	}
	return "Internal server error"
}
