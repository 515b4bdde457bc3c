package session

import "time"

// Record is the refresh session registered for one (user, device) pair.
//
// Token holds the refresh token itself. It is unique across all records.
type Record struct {
	UserID    int64
	Device    string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record's expiry is at or before now.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
