package flows

import (
	"net/mail"
	"strings"
	"time"
)

// UserRecord is the flow-local user model.
type UserRecord struct {
	ID             int64
	Email          string
	Name           string
	PasswordHash   string
	Timezone       string
	NativeLanguage string
	HasAccess      bool
	CreatedAt      time.Time
	LastLogin      time.Time
	LastActive     time.Time
}

// Identity is what an external identity provider vouches for.
type Identity struct {
	Email         string
	Name          string
	EmailVerified bool
}

// AccessToken is a minted access token with its lifetime in days.
type AccessToken struct {
	Token       string
	ExpiresAt   time.Time
	ExpiresDays float64
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	User             UserRecord
	Access           AccessToken
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Errors carries host-level sentinel errors so flows never import the root
// package.
type Errors struct {
	InvalidCredentials  error
	EmailTaken          error
	EmailNotVerified    error
	RefreshTokenMissing error
	InvalidToken        error
	UserNotFound        error
	DeviceMissing       error
	SessionMissing      error
	CredentialsRejected error
	IdentityRejected    error
	IdentityUnavailable error
	FederationDisabled  error

	// Invalid builds a validation error carrying msg.
	Invalid func(msg string) error
	// Persistence wraps a backing-store failure during op.
	Persistence func(op string, err error) error
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func expiresDays(ttl time.Duration) float64 {
	return ttl.Minutes() / 1440
}
