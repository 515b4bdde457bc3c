package flows

import (
	"context"
	"errors"

	"github.com/phonetica/phonauth/session"
)

// RunLogout deletes the session for (user, device). A missing device or a
// missing session are both client errors.
func RunLogout(ctx context.Context, d Deps, user UserRecord, device string) error {
	if device == "" {
		return d.Errors.DeviceMissing
	}

	if _, err := d.Sessions.Find(ctx, user.ID, device); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			d.record(ctx, Event{Name: EventLogoutMissingSession, UserID: user.ID, Email: user.Email, Device: device, Code: "no_session"})
			return d.Errors.SessionMissing
		}
		return d.Errors.Persistence("find session", err)
	}

	existed, err := d.Sessions.Delete(ctx, user.ID, device)
	if err != nil {
		return d.Errors.Persistence("delete session", err)
	}
	if !existed {
		// Lost a race with a concurrent logout on the same device.
		d.record(ctx, Event{Name: EventLogoutMissingSession, UserID: user.ID, Email: user.Email, Device: device, Code: "no_session"})
		return d.Errors.SessionMissing
	}

	d.record(ctx, Event{Name: EventLogoutSuccess, Success: true, UserID: user.ID, Email: user.Email, Device: device})
	return nil
}
