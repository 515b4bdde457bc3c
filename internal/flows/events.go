package flows

// Event names reported through Deps.Record.
const (
	EventSignupSuccess          = "signup_success"
	EventSignupDuplicate        = "signup_duplicate"
	EventLoginSuccess           = "login_success"
	EventLoginFailure           = "login_failure"
	EventFederatedLoginSuccess  = "federated_login_success"
	EventFederatedLoginRejected = "federated_login_rejected"
	EventFederatedUserCreated   = "federated_user_created"
	EventRefreshSuccess         = "refresh_success"
	EventRefreshFailure         = "refresh_failure"
	EventLogoutSuccess          = "logout_success"
	EventLogoutMissingSession   = "logout_missing_session"
	EventPasswordChangeSuccess  = "password_change_success"
	EventPasswordChangeInvalid  = "password_change_invalid_old"
	EventPasswordRehashed       = "password_rehashed"
	EventSessionUpserted        = "session_upserted"
	EventProfileUpdated         = "profile_updated"
	EventTokenGranted           = "token_granted"
	EventActivityTouched        = "activity_touched"
)

// Event is a flow outcome. Code is a short machine-readable failure reason.
type Event struct {
	Name    string
	Success bool
	UserID  int64
	Email   string
	Device  string
	Code    string
}
