package flows

import (
	"context"
	"strings"
	"time"
)

// ProfileUpdate holds optional profile edits. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name           *string
	Timezone       *string
	NativeLanguage *string
}

// RunUpdateProfile applies upd to user and saves it.
func RunUpdateProfile(ctx context.Context, d Deps, user UserRecord, upd ProfileUpdate) (UserRecord, error) {
	if upd.Name != nil {
		user.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Timezone != nil {
		tz := strings.TrimSpace(*upd.Timezone)
		if tz == "" {
			return UserRecord{}, d.Errors.Invalid("Timezone must not be empty")
		}
		user.Timezone = tz
	}
	if upd.NativeLanguage != nil {
		user.NativeLanguage = strings.TrimSpace(*upd.NativeLanguage)
	}

	if err := d.Users.Save(ctx, user); err != nil {
		return UserRecord{}, d.Errors.Persistence("save user", err)
	}
	d.record(ctx, Event{Name: EventProfileUpdated, Success: true, UserID: user.ID, Email: user.Email})
	return user, nil
}

// RunAuthenticate resolves a bearer access token to its user. Every failure
// short of a store outage collapses into CredentialsRejected.
//
// last_active is a calendar date; it is refreshed when it falls before the
// date one ActivityInterval ago. A failed refresh is logged, not returned.
func RunAuthenticate(ctx context.Context, d Deps, bearer string) (UserRecord, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return UserRecord{}, d.Errors.CredentialsRejected
	}
	subject, err := d.Tokens.Decode(bearer)
	if err != nil {
		return UserRecord{}, d.Errors.CredentialsRejected
	}

	user, found, err := d.Users.FindByEmail(ctx, NormalizeEmail(subject))
	if err != nil {
		return UserRecord{}, d.Errors.Persistence("find user", err)
	}
	if !found {
		return UserRecord{}, d.Errors.CredentialsRejected
	}

	now := d.now()
	if activityStale(user.LastActive, now, d.ActivityInterval) {
		user.LastActive = now
		if err := d.Users.Save(ctx, user); err != nil {
			d.warn(ctx, "last_active update failed", "user_id", user.ID, "error", err)
		} else {
			d.record(ctx, Event{Name: EventActivityTouched, Success: true, UserID: user.ID, Email: user.Email})
		}
	}
	return user, nil
}

func activityStale(lastActive, now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return truncateDay(lastActive).Before(truncateDay(now.Add(-interval)))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
