package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/phonetica/phonauth/password"
)

// SignupInput is the flow-local signup request.
type SignupInput struct {
	Email    string
	Name     string
	Password string
	Timezone string
}

// RunSignup creates a password account and queues the welcome mail.
func RunSignup(ctx context.Context, d Deps, in SignupInput) (UserRecord, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	pw := strings.TrimSpace(in.Password)
	tz := strings.TrimSpace(in.Timezone)

	switch {
	case !validEmail(email):
		return UserRecord{}, d.Errors.Invalid("Invalid email address")
	case pw == "":
		return UserRecord{}, d.Errors.Invalid("Password is required")
	case tz == "":
		return UserRecord{}, d.Errors.Invalid("Timezone is required")
	}

	_, found, err := d.Users.FindByEmail(ctx, email)
	if err != nil {
		return UserRecord{}, d.Errors.Persistence("find user", err)
	}
	if found {
		d.record(ctx, Event{Name: EventSignupDuplicate, Email: email, Code: "email_taken"})
		return UserRecord{}, d.Errors.EmailTaken
	}

	hash, err := hashPassword(ctx, d, pw)
	if err != nil {
		return UserRecord{}, err
	}

	now := d.now()
	user, err := d.Users.Create(ctx, UserRecord{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Timezone:     tz,
		CreatedAt:    now,
		LastLogin:    now,
		LastActive:   now,
	})
	if err != nil {
		// A concurrent signup can win the unique index after our lookup.
		if errors.Is(err, d.Errors.EmailTaken) {
			d.record(ctx, Event{Name: EventSignupDuplicate, Email: email, Code: "email_taken"})
			return UserRecord{}, d.Errors.EmailTaken
		}
		return UserRecord{}, d.Errors.Persistence("create user", err)
	}

	if d.Welcome != nil {
		d.Welcome(ctx, user.Email, user.Name)
	}
	d.record(ctx, Event{Name: EventSignupSuccess, Success: true, UserID: user.ID, Email: user.Email})
	return user, nil
}

func hashPassword(ctx context.Context, d Deps, pw string) (string, error) {
	hash, err := d.Passwords.Hash(ctx, pw)
	switch {
	case err == nil:
		return hash, nil
	case errors.Is(err, password.ErrPasswordTooLong):
		return "", d.Errors.Invalid("Password is too long")
	case errors.Is(err, password.ErrEmptyPassword):
		return "", d.Errors.Invalid("Password is required")
	default:
		return "", err
	}
}
