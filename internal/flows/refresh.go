package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/phonetica/phonauth/session"
)

// RunRefresh mints a new access token from a registered refresh token. The
// refresh token itself is not rotated.
func RunRefresh(ctx context.Context, d Deps, token string) (AccessToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		d.record(ctx, Event{Name: EventRefreshFailure, Code: "missing"})
		return AccessToken{}, d.Errors.RefreshTokenMissing
	}

	subject, err := d.Tokens.Decode(token)
	if err != nil {
		d.record(ctx, Event{Name: EventRefreshFailure, Code: "invalid"})
		return AccessToken{}, d.Errors.InvalidToken
	}

	user, found, err := d.Users.FindByEmail(ctx, NormalizeEmail(subject))
	if err != nil {
		return AccessToken{}, d.Errors.Persistence("find user", err)
	}
	if !found {
		d.record(ctx, Event{Name: EventRefreshFailure, Email: subject, Code: "user_not_found"})
		return AccessToken{}, d.Errors.UserNotFound
	}

	rec, err := d.Sessions.FindByToken(ctx, token)
	switch {
	case errors.Is(err, session.ErrNotFound):
		d.record(ctx, Event{Name: EventRefreshFailure, UserID: user.ID, Email: user.Email, Code: "not_registered"})
		return AccessToken{}, d.Errors.InvalidToken
	case err != nil:
		return AccessToken{}, d.Errors.Persistence("find session", err)
	case rec.UserID != user.ID:
		d.record(ctx, Event{Name: EventRefreshFailure, UserID: user.ID, Email: user.Email, Code: "owner_mismatch"})
		return AccessToken{}, d.Errors.InvalidToken
	}

	access, err := mintAccess(d, user.Email, d.now())
	if err != nil {
		return AccessToken{}, err
	}
	d.record(ctx, Event{Name: EventRefreshSuccess, Success: true, UserID: user.ID, Email: user.Email, Device: rec.Device})
	return access, nil
}
