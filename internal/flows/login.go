package flows

import (
	"context"
	"strings"
	"time"

	"github.com/phonetica/phonauth/session"
)

// LoginInput is the flow-local password login request. Device is the
// client's User-Agent and may be empty.
type LoginInput struct {
	Email    string
	Password string
	Timezone string
	Device   string
}

// RunLogin verifies credentials and opens a session for the device.
func RunLogin(ctx context.Context, d Deps, in LoginInput) (LoginResult, error) {
	user, err := verifyCredentials(ctx, d, in.Email, in.Password)
	if err != nil {
		d.record(ctx, Event{Name: EventLoginFailure, Email: NormalizeEmail(in.Email), Device: in.Device, Code: "invalid_credentials"})
		return LoginResult{}, err
	}
	if tz := strings.TrimSpace(in.Timezone); tz != "" {
		user.Timezone = tz
	}

	res, err := issueSession(ctx, d, user, in.Device)
	if err != nil {
		return LoginResult{}, err
	}
	d.record(ctx, Event{Name: EventLoginSuccess, Success: true, UserID: user.ID, Email: user.Email, Device: in.Device})
	return res, nil
}

// RunPasswordGrant mints a bare access token for the OAuth2 password form.
// No session is written.
func RunPasswordGrant(ctx context.Context, d Deps, email, pw string) (AccessToken, error) {
	user, err := verifyCredentials(ctx, d, email, pw)
	if err != nil {
		d.record(ctx, Event{Name: EventLoginFailure, Email: NormalizeEmail(email), Code: "invalid_credentials"})
		return AccessToken{}, err
	}
	access, err := mintAccess(d, user.Email, d.now())
	if err != nil {
		return AccessToken{}, err
	}
	d.record(ctx, Event{Name: EventTokenGranted, Success: true, UserID: user.ID, Email: user.Email})
	return access, nil
}

// verifyCredentials does not distinguish an unknown email from a bad
// password. Accounts without a local password never verify.
func verifyCredentials(ctx context.Context, d Deps, email, pw string) (UserRecord, error) {
	email = NormalizeEmail(email)
	pw = strings.TrimSpace(pw)
	if email == "" || pw == "" {
		return UserRecord{}, d.Errors.InvalidCredentials
	}

	user, found, err := d.Users.FindByEmail(ctx, email)
	if err != nil {
		return UserRecord{}, d.Errors.Persistence("find user", err)
	}
	if !found || user.PasswordHash == "" {
		return UserRecord{}, d.Errors.InvalidCredentials
	}

	ok, err := d.Passwords.Verify(ctx, pw, user.PasswordHash)
	if err != nil {
		return UserRecord{}, err
	}
	if !ok {
		return UserRecord{}, d.Errors.InvalidCredentials
	}

	if d.Passwords.NeedsRehash(user.PasswordHash) {
		if hash, herr := d.Passwords.Hash(ctx, pw); herr == nil {
			user.PasswordHash = hash
			d.record(ctx, Event{Name: EventPasswordRehashed, Success: true, UserID: user.ID, Email: user.Email})
		} else {
			d.warn(ctx, "password rehash failed", "user_id", user.ID, "error", herr)
		}
	}
	return user, nil
}

// issueSession mints both tokens, stamps last_login, and upserts the
// (user, device) session. The user row is saved before the session so a
// failed save never leaves a session behind.
func issueSession(ctx context.Context, d Deps, user UserRecord, device string) (LoginResult, error) {
	now := d.now()

	access, err := mintAccess(d, user.Email, now)
	if err != nil {
		return LoginResult{}, err
	}
	refreshExp := now.Add(d.RefreshTTL)
	refresh, err := d.Tokens.Encode(user.Email, refreshExp)
	if err != nil {
		return LoginResult{}, err
	}

	user.LastLogin = now
	if err := d.Users.Save(ctx, user); err != nil {
		return LoginResult{}, d.Errors.Persistence("save user", err)
	}

	if err := d.Sessions.Upsert(ctx, sessionRecord(user.ID, device, refresh, now, refreshExp)); err != nil {
		return LoginResult{}, d.Errors.Persistence("upsert session", err)
	}
	d.record(ctx, Event{Name: EventSessionUpserted, Success: true, UserID: user.ID, Email: user.Email, Device: device})

	return LoginResult{
		User:             user,
		Access:           access,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func mintAccess(d Deps, subject string, now time.Time) (AccessToken, error) {
	exp := now.Add(d.AccessTTL)
	token, err := d.Tokens.Encode(subject, exp)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, ExpiresAt: exp, ExpiresDays: expiresDays(d.AccessTTL)}, nil
}

func sessionRecord(userID int64, device, token string, issued, expires time.Time) session.Record {
	return session.Record{
		UserID:    userID,
		Device:    device,
		Token:     token,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}
}
