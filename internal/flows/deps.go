package flows

import (
	"context"
	"time"

	"github.com/phonetica/phonauth/session"
)

// UserStore is the user repository as seen by the flows.
type UserStore interface {
	// FindByEmail looks up a normalized email. found is false when no user exists.
	FindByEmail(ctx context.Context, email string) (user UserRecord, found bool, err error)
	// Create inserts user and returns it with its assigned ID.
	Create(ctx context.Context, user UserRecord) (UserRecord, error)
	// Save overwrites the mutable fields of an existing user.
	Save(ctx context.Context, user UserRecord) error
}

// SessionStore persists one refresh session per (user, device).
type SessionStore interface {
	Upsert(ctx context.Context, rec session.Record) error
	Find(ctx context.Context, userID int64, device string) (*session.Record, error)
	FindByToken(ctx context.Context, token string) (*session.Record, error)
	Delete(ctx context.Context, userID int64, device string) (bool, error)
}

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encodedHash string) (bool, error)
	NeedsRehash(encodedHash string) bool
}

// TokenCodec signs and verifies subject tokens.
type TokenCodec interface {
	Encode(subject string, expiresAt time.Time) (string, error)
	Decode(token string) (string, error)
}

// Deps groups everything the flows need. The root engine builds this once
// and delegates each request to the matching Run function.
type Deps struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// ActivityInterval is how stale last_active may get before an
	// authenticated request refreshes it.
	ActivityInterval time.Duration
	// ExchangeTimeout bounds the identity provider call.
	ExchangeTimeout time.Duration

	Now func() time.Time

	Users     UserStore
	Sessions  SessionStore
	Passwords PasswordHasher
	Tokens    TokenCodec

	// ExchangeCode trades an external authorization code for an identity.
	// Nil when federated login is not configured.
	ExchangeCode func(ctx context.Context, code string) (Identity, error)
	// Welcome queues the welcome mail. It must not block on delivery.
	Welcome func(ctx context.Context, email, name string)
	// Record reports flow outcomes for metrics and audit.
	Record func(ctx context.Context, ev Event)
	// Warn logs best-effort failures that do not fail the flow.
	Warn func(ctx context.Context, msg string, args ...any)

	Errors Errors
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

func (d Deps) record(ctx context.Context, ev Event) {
	if d.Record != nil {
		d.Record(ctx, ev)
	}
}

func (d Deps) warn(ctx context.Context, msg string, args ...any) {
	if d.Warn != nil {
		d.Warn(ctx, msg, args...)
	}
}
