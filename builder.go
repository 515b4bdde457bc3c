package phonauth

import (
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/phonetica/phonauth/internal/audit"
	"github.com/phonetica/phonauth/internal/dispatch"
	"github.com/phonetica/phonauth/internal/flows"
	"github.com/phonetica/phonauth/internal/logging"
	"github.com/phonetica/phonauth/internal/rate"
	"github.com/phonetica/phonauth/jwt"
	"github.com/phonetica/phonauth/password"
	"github.com/phonetica/phonauth/session"
)

const tracerName = "github.com/phonetica/phonauth"

// welcomeQueueSize bounds pending welcome mails. Overflow is dropped and
// counted; signups never wait on mail delivery.
const welcomeQueueSize = 256

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    UserRepository
	sessions SessionStore
	identity IdentityProvider
	notifier Notifier
	limiter  RateLimiter
	logger   Logger
	tracer   trace.TracerProvider
	clock    func() time.Time

	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores sessions in Redis unless WithSessionStore is also given.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserRepository(repo UserRepository) *Builder {
	b.users = repo
	return b
}

func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

// WithIdentityProvider enables LoginWithGoogle.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identity = p
	return b
}

// WithNotifier enables welcome mails.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithRateLimiter injects the limiter consulted by CheckRate. Without it,
// Build creates an in-process limiter from Config.RateLimit.
func (b *Builder) WithRateLimiter(l RateLimiter) *Builder {
	b.limiter = l
	return b
}

func (b *Builder) WithLogger(l Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	cfg.Password.Algorithm = strings.ToLower(cfg.Password.Algorithm)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user repository required")
	}

	// -------- SESSION STORE --------
	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	}

	// -------- CREDENTIALS --------
	opts := password.DefaultOptions()
	opts.Algorithm = password.Algorithm(cfg.Password.Algorithm)
	opts.BcryptCost = cfg.Password.BcryptCost
	opts.Argon2 = password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	}
	if cfg.Password.MaxConcurrent > 0 {
		opts.MaxConcurrent = cfg.Password.MaxConcurrent
	}
	hasher, err := password.New(opts)
	if err != nil {
		return nil, err
	}

	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           b.clock,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		users:    b.users,
		sessions: sessions,
		identity: b.identity,
		notifier: b.notifier,
		hasher:   hasher,
		codec:    codec,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   b.logger,
		clock:    b.clock,
	}
	if engine.logger == nil {
		engine.logger = logging.Discard()
	}

	tp := b.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	engine.tracer = tp.Tracer(tracerName)

	// -------- RATE LIMITER --------
	engine.limiter = b.limiter
	if engine.limiter == nil && cfg.RateLimit.Enabled {
		var rateOpts []rate.Option
		if b.clock != nil {
			rateOpts = append(rateOpts, rate.WithClock(b.clock))
		}
		engine.limiter = rate.New(rate.Config{
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
		}, rateOpts...)
	}

	// -------- ASYNC QUEUES --------
	engine.audit = audit.NewDispatcher(dispatch.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	if b.notifier != nil {
		engine.welcome = dispatch.New(dispatch.Config{
			Enabled:    true,
			BufferSize: welcomeQueueSize,
			DropIfFull: true,
		}, engine.sendWelcome)
	}

	deps := flows.Deps{
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		ActivityInterval: cfg.Activity.TouchInterval,
		ExchangeTimeout:  cfg.Federated.ExchangeTimeout,
		Now:              engine.now,
		Users:            userStore{repo: b.users},
		Sessions:         sessions,
		Passwords:        hasher,
		Tokens:           codec,
		Welcome:          engine.queueWelcome,
		Record:           engine.recordFlowEvent,
		Warn:             engine.logger.Warn,
		Errors:           flowErrors(),
	}
	if b.identity != nil {
		deps.ExchangeCode = engine.exchangeCode
	}
	engine.flow = flows.New(deps)

	b.built = true

	return engine, nil
}

func flowErrors() flows.Errors {
	return flows.Errors{
		InvalidCredentials:  ErrInvalidCredentials,
		EmailTaken:          ErrEmailTaken,
		EmailNotVerified:    ErrEmailNotVerified,
		RefreshTokenMissing: ErrRefreshTokenMissing,
		InvalidToken:        ErrInvalidToken,
		UserNotFound:        ErrUserNotFound,
		DeviceMissing:       ErrDeviceMissing,
		SessionMissing:      ErrSessionMissing,
		CredentialsRejected: ErrCredentialsInvalid,
		IdentityRejected:    ErrIdentityRejected,
		IdentityUnavailable: ErrIdentityUnavailable,
		FederationDisabled:  ErrFederationDisabled,
		Invalid:             validationError,
		Persistence:         persistenceError,
	}
}
