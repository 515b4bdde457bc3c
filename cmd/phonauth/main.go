// Command phonauth serves the authentication API.
//
// Configuration is read from the environment and an optional .env file;
// see internal/config for the variables.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/phonetica/phonauth"
	"github.com/phonetica/phonauth/httpapi"
	"github.com/phonetica/phonauth/identity/google"
	"github.com/phonetica/phonauth/internal/config"
	"github.com/phonetica/phonauth/internal/logging"
	"github.com/phonetica/phonauth/internal/telemetry"
	otelexport "github.com/phonetica/phonauth/metrics/export/otel"
	promexport "github.com/phonetica/phonauth/metrics/export/prometheus"
	"github.com/phonetica/phonauth/notify"
	"github.com/phonetica/phonauth/session"
	"github.com/phonetica/phonauth/storage/memory"
	"github.com/phonetica/phonauth/storage/postgres"
)

const serviceName = "phonauth"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "phonauth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn(sctx, "tracing shutdown failed", "error", err)
		}
	}()

	var poolOpts []postgres.PoolOption
	if cfg.UseSSL {
		// Managed databases present certificates the host store does not
		// know; the connection is encrypted but the peer is not verified.
		poolOpts = append(poolOpts, postgres.WithTLS(&tls.Config{InsecureSkipVerify: true}))
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, poolOpts...)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.MigratePool(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	b := phonauth.New().
		WithConfig(engineConfig(cfg)).
		WithUserRepository(postgres.NewUsers(pool)).
		WithLogger(logger).
		WithAuditSink(phonauth.NewSlogSink(logger.Slog().With("component", "audit")))

	sessionHealth, closeSessions, err := withSessionStore(b, cfg, pool)
	if err != nil {
		return err
	}
	defer closeSessions()

	if cfg.GoogleEnabled() {
		provider, err := google.New(google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleSecretKey,
		})
		if err != nil {
			return err
		}
		b.WithIdentityProvider(provider)
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	b.WithNotifier(notifier)

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info(ctx, "security posture",
		"signing", report.SigningAlgorithm,
		"password", report.PasswordAlgorithm,
		"cookie_secure", report.CookieSecure,
		"cookie_samesite", report.CookieSameSite,
		"rate_limit", report.RateLimit,
		"rate_window", report.RateLimitWindow,
		"google", report.FederatedEnabled,
		"welcome_mail", report.WelcomeMail,
	)

	deps := httpapi.Deps{
		Engine:         engine,
		Logger:         logger,
		AllowedOrigins: cfg.Origins,
		TrustedProxies: cfg.TrustedProxies,
		Health:         healthCheck(pool.Ping, sessionHealth),
	}
	if cfg.MetricsEnabled {
		deps.Metrics = promexport.NewExporter(engine).Handler()

		otelMetrics, err := otelexport.NewExporter(otel.GetMeterProvider().Meter(serviceName), engine)
		if err != nil {
			return fmt.Errorf("register otel metrics: %w", err)
		}
		defer otelMetrics.Close()
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		engine.RunLimiterSweep(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info(gctx, "listening", "addr", cfg.HTTPAddr)
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info(sctx, "shutting down")
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func engineConfig(cfg config.Config) phonauth.Config {
	c := phonauth.DefaultConfig()
	c.JWT.PrivateKey = []byte(cfg.SecretKey)
	c.JWT.SigningMethod = strings.ToLower(cfg.HashAlgorithm)
	c.JWT.AccessTTL = cfg.AccessTTL()
	c.JWT.RefreshTTL = cfg.RefreshTTL()
	c.JWT.KeyID = cfg.JWTKeyID
	c.JWT.VerifyKeys = cfg.VerifyKeys()
	c.Password.Algorithm = strings.ToLower(cfg.PasswordAlgorithm)
	c.RateLimit.Enabled = cfg.RateLimit > 0
	c.RateLimit.Limit = cfg.RateLimit
	c.RateLimit.Window = cfg.RateLimitWindow
	c.RateLimit.SweepInterval = cfg.RateLimitSweepInterval
	c.Federated.ExchangeTimeout = cfg.GoogleExchangeTimeout
	c.Audit.Enabled = true
	c.Metrics.Enabled = cfg.MetricsEnabled
	c.Metrics.EnableLatencyHistograms = cfg.MetricsEnabled
	return c
}

type check func(ctx context.Context) error

// withSessionStore selects the session backend. It returns the backend's
// health check (nil when the backend has none of its own) and a func that
// releases backend resources.
func withSessionStore(b *phonauth.Builder, cfg config.Config, pool *pgxpool.Pool) (check, func(), error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		store := session.NewStore(client, phonauth.DefaultConfig().Session.RedisPrefix)
		b.WithSessionStore(store)
		ping := func(ctx context.Context) error {
			_, err := store.Ping(ctx)
			return err
		}
		return ping, func() { _ = client.Close() }, nil
	case config.SessionStoreMemory:
		b.WithSessionStore(memory.NewSessions())
	default:
		b.WithSessionStore(postgres.NewSessions(pool))
	}
	return nil, func() {}, nil
}

// healthCheck runs every non-nil check in order and reports the first
// failure.
func healthCheck(checks ...check) check {
	return func(ctx context.Context) error {
		for _, c := range checks {
			if c == nil {
				continue
			}
			if err := c(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func newNotifier(cfg config.Config, logger *logging.SlogLogger) (phonauth.Notifier, error) {
	if !cfg.SendEmails {
		return notify.LogNotifier{Logger: logger}, nil
	}
	return notify.NewMailer(notify.SMTPConfig{
		Host:         cfg.SMTPHost,
		Port:         cfg.SMTPPort,
		Login:        cfg.EmailLogin,
		Password:     cfg.EmailPassword,
		Sender:       cfg.EmailSender,
		AppName:      cfg.AppName,
		DocsURL:      cfg.DocsURL,
		CommunityURL: cfg.CommunityURL,
		DashboardURL: cfg.DashboardURL,
	})
}
