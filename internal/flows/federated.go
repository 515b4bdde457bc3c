package flows

import (
	"context"
	"errors"
	"strings"
)

// FederatedInput is the flow-local external login request.
type FederatedInput struct {
	Code     string
	Timezone string
	Device   string
}

// RunFederatedLogin exchanges an authorization code for a verified identity
// and then joins the password login path. Nothing is written unless the
// provider vouches for the email.
func RunFederatedLogin(ctx context.Context, d Deps, in FederatedInput) (LoginResult, error) {
	if d.ExchangeCode == nil {
		return LoginResult{}, d.Errors.FederationDisabled
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return LoginResult{}, d.Errors.Invalid("Authorization code is required")
	}

	exCtx := ctx
	if d.ExchangeTimeout > 0 {
		var cancel context.CancelFunc
		exCtx, cancel = context.WithTimeout(ctx, d.ExchangeTimeout)
		defer cancel()
	}
	id, err := d.ExchangeCode(exCtx, code)
	if err != nil {
		d.record(ctx, Event{Name: EventFederatedLoginRejected, Device: in.Device, Code: "exchange_failed"})
		if errors.Is(err, d.Errors.IdentityRejected) || errors.Is(err, d.Errors.IdentityUnavailable) {
			return LoginResult{}, err
		}
		return LoginResult{}, errors.Join(d.Errors.IdentityUnavailable, err)
	}

	email := NormalizeEmail(id.Email)
	if email == "" || !id.EmailVerified {
		d.record(ctx, Event{Name: EventFederatedLoginRejected, Email: email, Device: in.Device, Code: "email_not_verified"})
		return LoginResult{}, d.Errors.EmailNotVerified
	}
	tz := strings.TrimSpace(in.Timezone)

	user, found, err := d.Users.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, d.Errors.Persistence("find user", err)
	}

	if !found {
		now := d.now()
		user, err = d.Users.Create(ctx, UserRecord{
			Email:      email,
			Name:       strings.TrimSpace(id.Name),
			Timezone:   tz,
			CreatedAt:  now,
			LastLogin:  now,
			LastActive: now,
		})
		if err != nil {
			return LoginResult{}, d.Errors.Persistence("create user", err)
		}
		if d.Welcome != nil {
			d.Welcome(ctx, user.Email, user.Name)
		}
		d.record(ctx, Event{Name: EventFederatedUserCreated, Success: true, UserID: user.ID, Email: user.Email})
	} else {
		// The external identity supersedes any local password.
		user.PasswordHash = ""
		if tz != "" {
			user.Timezone = tz
		}
	}

	res, err := issueSession(ctx, d, user, in.Device)
	if err != nil {
		return LoginResult{}, err
	}
	d.record(ctx, Event{Name: EventFederatedLoginSuccess, Success: true, UserID: user.ID, Email: user.Email, Device: in.Device})
	return res, nil
}
