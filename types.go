package phonauth

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/phonetica/phonauth/internal/audit"
	"github.com/phonetica/phonauth/session"
)

// User is an account as stored by the [UserRepository]. Email is the
// normalized, unique subject of every token. PasswordHash is empty for
// accounts that only sign in through Google.
type User struct {
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

// UserRepository persists users. Implementations live in storage/postgres
// and storage/memory.
type UserRepository interface {
	// FindByEmail returns ErrUserNotFound when no user has email.
	FindByEmail(ctx context.Context, email string) (User, error)
	// Create inserts user and returns it with ID set. It returns
	// ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, user User) (User, error)
	// Save updates name, password hash, timezone, native language,
	// last_login, last_active and has_access of an existing user.
	Save(ctx context.Context, user User) error
}

// SessionStore keeps one refresh session per (user, device). Find and
// FindByToken return session.ErrNotFound when nothing matches.
type SessionStore interface {
	Upsert(ctx context.Context, rec session.Record) error
	Find(ctx context.Context, userID int64, device string) (*session.Record, error)
	FindByToken(ctx context.Context, token string) (*session.Record, error)
	Delete(ctx context.Context, userID int64, device string) (bool, error)
}

// Identity is what an external identity provider vouches for.
type Identity struct {
	Email         string
	Name          string
	EmailVerified bool
}

// IdentityProvider trades an authorization code for an [Identity].
// Return ErrIdentityRejected when the provider refuses the code.
type IdentityProvider interface {
	Exchange(ctx context.Context, code string) (Identity, error)
}

// Notifier sends the welcome mail. The Engine treats it as fire-and-forget:
// errors are logged and never fail the calling flow.
type Notifier interface {
	SendWelcome(ctx context.Context, email, name string) error
}

// RateLimiter decides whether addr may make another request. It returns a
// non-nil error to reject.
type RateLimiter interface {
	Allow(addr string) error
}

// Logger is the structured logger the Engine writes to.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

// SignupInput is the input for [Engine.Signup].
type SignupInput struct {
	Email    string
	Name     string
	Password string
	Timezone string
}

// LoginInput is the input for [Engine.Login]. The device descriptor comes
// from [WithUserAgent].
type LoginInput struct {
	Email    string
	Password string
	Timezone string
}

// ProfileUpdate holds optional profile edits for [Engine.UpdateProfile].
// Nil fields are left unchanged.
type ProfileUpdate struct {
	Name           *string
	Timezone       *string
	NativeLanguage *string
}

// AccessToken is a freshly minted access token. ExpiresDays is the
// lifetime in days (AccessTTL minutes / 1440).
type AccessToken struct {
	Token       string
	ExpiresAt   time.Time
	ExpiresDays float64
}

// LoginResult is returned by [Engine.Login] and [Engine.LoginWithGoogle].
// RefreshToken belongs in the refresh cookie, never in a response body.
type LoginResult struct {
	User             User
	Access           AccessToken
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink is an [AuditSink] that logs each event through log/slog.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] that logs to l.
func NewSlogSink(l *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(l)
}
