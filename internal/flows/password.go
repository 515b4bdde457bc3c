package flows

import (
	"context"
	"strings"
)

// RunChangePassword re-verifies the current password and stores a hash of
// next. A wrong current password is reported as changed == false with a nil
// error. Sessions on other devices are left alone.
func RunChangePassword(ctx context.Context, d Deps, user UserRecord, current, next string) (bool, error) {
	current = strings.TrimSpace(current)
	next = strings.TrimSpace(next)

	if user.PasswordHash == "" || current == "" {
		d.record(ctx, Event{Name: EventPasswordChangeInvalid, UserID: user.ID, Email: user.Email, Code: "incorrect_password"})
		return false, nil
	}
	ok, err := d.Passwords.Verify(ctx, current, user.PasswordHash)
	if err != nil {
		return false, err
	}
	if !ok {
		d.record(ctx, Event{Name: EventPasswordChangeInvalid, UserID: user.ID, Email: user.Email, Code: "incorrect_password"})
		return false, nil
	}

	if next == "" {
		return false, d.Errors.Invalid("New password is required")
	}
	hash, err := hashPassword(ctx, d, next)
	if err != nil {
		return false, err
	}
	user.PasswordHash = hash
	if err := d.Users.Save(ctx, user); err != nil {
		return false, d.Errors.Persistence("save user", err)
	}

	d.record(ctx, Event{Name: EventPasswordChangeSuccess, Success: true, UserID: user.ID, Email: user.Email})
	return true, nil
}
