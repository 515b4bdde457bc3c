package httpapi

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/phonetica/phonauth"
	"github.com/phonetica/phonauth/middleware"
)

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Engine *phonauth.Engine
	Logger phonauth.Logger

	// AllowedOrigins is the CORS allow-list. Credentials are allowed, so
	// "*" is never sent back verbatim.
	AllowedOrigins []string
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP are
	// believed. Empty keys every client by its TCP peer address.
	TrustedProxies []netip.Prefix
	// RequestTimeout bounds handler execution. Zero uses 30s.
	RequestTimeout time.Duration
	// Metrics, when set, is mounted at /api/metrics.
	Metrics http.Handler
	// Health, when set, is consulted by /api/healthz.
	Health func(ctx context.Context) error
}

type api struct {
	engine *phonauth.Engine
	logger phonauth.Logger
	health func(ctx context.Context) error
}

// NewRouter builds the /api router.
func NewRouter(deps Deps) http.Handler {
	a := &api{engine: deps.Engine, logger: deps.Logger, health: deps.Health}
	if a.logger == nil {
		a.logger = nopLogger{}
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(deps.TrustedProxies))
	r.Use(requestLogger(a.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.StripSlashes)
	r.Use(chimw.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Timezone"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestContext)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
	})

	limited := middleware.RateLimit(a.engine, middleware.WriteError)
	authed := middleware.Guard(a.engine, middleware.WriteError)

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", a.handleHealth)
		if deps.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", deps.Metrics)
		}
		r.With(limited).Post("/token", a.handleToken)

		r.Route("/users", func(r chi.Router) {
			r.With(limited).Post("/signup", a.handleSignup)
			r.With(limited).Post("/login", a.handleLogin)
			r.With(limited).Post("/login/google", a.handleGoogleLogin)
			r.With(limited).Get("/refresh", a.handleRefresh)

			r.With(authed).Get("/whoami", a.handleWhoAmI)
			r.With(authed).Put("/", a.handleUpdateUser)
			r.With(authed).Put("/password", a.handleChangePassword)
			r.With(authed).Post("/logout", a.handleLogout)
		})
	})

	return r
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			a.logger.Warn(r.Context(), "health check failed", "error", err)
			middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
