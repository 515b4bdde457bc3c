package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Users != nil && s.deps.Sessions != nil && s.deps.Tokens != nil && s.deps.Passwords != nil
}

func (s Service) Signup(ctx context.Context, in SignupInput) (UserRecord, error) {
	return RunSignup(ctx, s.deps, in)
}

func (s Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	return RunLogin(ctx, s.deps, in)
}

func (s Service) FederatedLogin(ctx context.Context, in FederatedInput) (LoginResult, error) {
	return RunFederatedLogin(ctx, s.deps, in)
}

func (s Service) Refresh(ctx context.Context, token string) (AccessToken, error) {
	return RunRefresh(ctx, s.deps, token)
}

func (s Service) Logout(ctx context.Context, user UserRecord, device string) error {
	return RunLogout(ctx, s.deps, user, device)
}

func (s Service) ChangePassword(ctx context.Context, user UserRecord, current, next string) (bool, error) {
	return RunChangePassword(ctx, s.deps, user, current, next)
}

func (s Service) UpdateProfile(ctx context.Context, user UserRecord, upd ProfileUpdate) (UserRecord, error) {
	return RunUpdateProfile(ctx, s.deps, user, upd)
}

func (s Service) Authenticate(ctx context.Context, bearer string) (UserRecord, error) {
	return RunAuthenticate(ctx, s.deps, bearer)
}

func (s Service) PasswordGrant(ctx context.Context, email, password string) (AccessToken, error) {
	return RunPasswordGrant(ctx, s.deps, email, password)
}
