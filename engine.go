package phonauth

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phonetica/phonauth/internal/dispatch"
	"github.com/phonetica/phonauth/internal/flows"
	"github.com/phonetica/phonauth/jwt"
	"github.com/phonetica/phonauth/password"
)

// Engine runs the authentication flows. Build it with [Builder]; all
// methods are safe for concurrent use.
type Engine struct {
	config   Config
	users    UserRepository
	sessions SessionStore
	identity IdentityProvider
	limiter  RateLimiter
	notifier Notifier
	hasher   *password.Hasher
	codec    *jwt.Codec
	audit    *dispatch.Dispatcher[AuditEvent]
	welcome  *dispatch.Dispatcher[welcomeMail]
	metrics  *Metrics
	logger   Logger
	tracer   trace.Tracer
	clock    func() time.Time
	flow     flows.Service
}

type welcomeMail struct {
	Email string
	Name  string
}

const welcomeSendTimeout = 30 * time.Second

// Close drains the audit and welcome mail queues.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.welcome.Close()
	e.audit.Close()
}

// AuditDropped reports audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// WelcomeDropped reports welcome mails that were never queued.
func (e *Engine) WelcomeDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.welcome.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the validated configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now().UTC()
	}
	return e.clock().UTC()
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// Signup registers a password account. The welcome mail is queued, never
// awaited.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (User, error) {
	if !e.ready() {
		return User{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Signup")
	u, err := e.flow.Signup(ctx, flows.SignupInput{
		Email:    in.Email,
		Name:     in.Name,
		Password: in.Password,
		Timezone: in.Timezone,
	})
	e.endSpan(ctx, span, "signup", err)
	if err != nil {
		return User{}, err
	}
	return fromFlowUser(u), nil
}

// Login verifies email and password and opens a session for the device
// named by [WithUserAgent]. A missing device is stored as "".
func (e *Engine) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Login")
	res, err := e.flow.Login(ctx, flows.LoginInput{
		Email:    in.Email,
		Password: in.Password,
		Timezone: in.Timezone,
		Device:   userAgentFromContext(ctx),
	})
	e.endSpan(ctx, span, "login", err)
	if err != nil {
		return nil, err
	}
	return fromFlowLogin(res), nil
}

// LoginWithGoogle exchanges an authorization code with the configured
// [IdentityProvider] and signs the user in, creating the account on first
// use. An existing account loses its local password.
func (e *Engine) LoginWithGoogle(ctx context.Context, code, timezone string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "LoginWithGoogle")
	res, err := e.flow.FederatedLogin(ctx, flows.FederatedInput{
		Code:     code,
		Timezone: timezone,
		Device:   userAgentFromContext(ctx),
	})
	e.endSpan(ctx, span, "federated_login", err)
	if err != nil {
		return nil, err
	}
	return fromFlowLogin(res), nil
}

// Refresh mints a new access token for a refresh token that is still the
// registered one for its device. The refresh token is not rotated.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (AccessToken, error) {
	if !e.ready() {
		return AccessToken{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Refresh")
	tok, err := e.flow.Refresh(ctx, refreshToken)
	e.endSpan(ctx, span, "refresh", err)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken(tok), nil
}

// Logout deletes the session of user on the device named by
// [WithUserAgent]. It fails with ErrDeviceMissing or ErrSessionMissing
// rather than succeeding silently.
func (e *Engine) Logout(ctx context.Context, user User) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	err := e.flow.Logout(ctx, toFlowUser(user), userAgentFromContext(ctx))
	e.endSpan(ctx, span, "logout", err)
	return err
}

// ChangePassword replaces the password of user. A wrong current password
// returns changed == false and a nil error. Other sessions stay valid.
func (e *Engine) ChangePassword(ctx context.Context, user User, current, next string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ChangePassword")
	changed, err := e.flow.ChangePassword(ctx, toFlowUser(user), current, next)
	span.SetAttributes(attribute.Bool("phonauth.changed", changed))
	e.endSpan(ctx, span, "change_password", err)
	return changed, err
}

// UpdateProfile applies upd to user and returns the saved profile.
func (e *Engine) UpdateProfile(ctx context.Context, user User, upd ProfileUpdate) (User, error) {
	if !e.ready() {
		return User{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "UpdateProfile")
	u, err := e.flow.UpdateProfile(ctx, toFlowUser(user), flows.ProfileUpdate(upd))
	e.endSpan(ctx, span, "update_profile", err)
	if err != nil {
		return User{}, err
	}
	return fromFlowUser(u), nil
}

// Authenticate resolves a bearer access token to its user and refreshes
// last_active at most once per Activity.TouchInterval.
func (e *Engine) Authenticate(ctx context.Context, bearer string) (User, error) {
	if !e.ready() {
		return User{}, ErrEngineNotReady
	}
	start := time.Now()
	u, err := e.flow.Authenticate(ctx, bearer)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		e.logFailure(ctx, "authenticate", err)
		return User{}, err
	}
	return fromFlowUser(u), nil
}

// PasswordGrant issues an access token for the OAuth2 password form. No
// session or refresh token is created.
func (e *Engine) PasswordGrant(ctx context.Context, email, pw string) (AccessToken, error) {
	if !e.ready() {
		return AccessToken{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "PasswordGrant")
	tok, err := e.flow.PasswordGrant(ctx, email, pw)
	e.endSpan(ctx, span, "password_grant", err)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken(tok), nil
}

// CheckRate consults the rate limiter for addr. It returns ErrRateLimited
// when addr is over its window; a nil limiter allows everything.
func (e *Engine) CheckRate(ctx context.Context, addr string) error {
	if e == nil || e.limiter == nil {
		return nil
	}
	if err := e.limiter.Allow(addr); err != nil {
		e.emitRateLimit(ctx, addr)
		return ErrRateLimited
	}
	return nil
}

type sweeper interface {
	Run(ctx context.Context, interval time.Duration, onSweep func(removed int))
}

// RunLimiterSweep periodically compacts the rate limiter until ctx is done.
// It returns at once when the limiter has no sweep.
func (e *Engine) RunLimiterSweep(ctx context.Context) {
	if e == nil {
		return
	}
	sw, ok := e.limiter.(sweeper)
	if !ok {
		return
	}
	sw.Run(ctx, e.config.RateLimit.SweepInterval, func(removed int) {
		if removed > 0 {
			e.logger.Debug(ctx, "rate limiter swept", "removed", removed)
		}
	})
}

func (e *Engine) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "phonauth."+op, trace.WithSpanKind(trace.SpanKindInternal))
}

func (e *Engine) endSpan(ctx context.Context, span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, auditErrorCode(err).String())
		span.SetAttributes(attribute.String("phonauth.error_kind", KindOf(err).String()))
		e.logFailure(ctx, op, err)
	}
	span.End()
}

// logFailure logs only faults the caller cannot fix. Client errors are
// already in the audit trail.
func (e *Engine) logFailure(ctx context.Context, op string, err error) {
	switch KindOf(err) {
	case KindPersistence, KindInternal:
		e.logger.Error(ctx, "auth operation failed", "op", op, "error", err)
		e.emitAudit(ctx, AuditEvent{
			EventType: op + "_error",
			Error:     string(auditErrorCode(err)),
		})
	}
}

func (c AuditErrorCode) String() string {
	return string(c)
}

// queueWelcome is the flows.Deps.Welcome hook.
func (e *Engine) queueWelcome(ctx context.Context, email, name string) {
	if e.welcome == nil {
		return
	}
	if e.welcome.Enqueue(ctx, welcomeMail{Email: email, Name: name}) {
		e.metricInc(MetricWelcomeQueued)
		return
	}
	e.logger.Warn(ctx, "welcome mail dropped", "email", email)
}

func (e *Engine) sendWelcome(ctx context.Context, m welcomeMail) {
	ctx, cancel := context.WithTimeout(ctx, welcomeSendTimeout)
	defer cancel()
	if err := e.notifier.SendWelcome(ctx, m.Email, m.Name); err != nil {
		e.logger.Warn(ctx, "welcome mail failed", "email", m.Email, "error", err)
	}
}

func (e *Engine) exchangeCode(ctx context.Context, code string) (flows.Identity, error) {
	id, err := e.identity.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, ErrIdentityRejected) {
			return flows.Identity{}, err
		}
		return flows.Identity{}, errors.Join(ErrIdentityUnavailable, err)
	}
	return flows.Identity(id), nil
}
