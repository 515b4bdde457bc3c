// Package config loads the server configuration from the environment and an
// optional .env file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Session store backends.
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
	SessionStoreMemory   = "memory"
)

// Config is the full server configuration.
type Config struct {
	SecretKey                string `env:"OAUTH_SECRET_KEY,required"`
	HashAlgorithm            string `env:"HASH_ALGORITHM"               envDefault:"HS256"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES"  envDefault:"30"`
	RefreshTokenExpireDays   int    `env:"REFRESH_TOKEN_EXPIRE_DAYS"    envDefault:"30"`
	PasswordAlgorithm        string `env:"PASSWORD_ALGORITHM"           envDefault:"bcrypt"`

	// JWTKeyID is the kid of OAUTH_SECRET_KEY. JWTVerifyKeys lists earlier
	// keys still accepted during rotation, as "kid:secret,kid:secret".
	JWTKeyID      string            `env:"JWT_KEY_ID"`
	JWTVerifyKeys map[string]string `env:"JWT_VERIFY_KEYS"`

	DatabaseURL  string `env:"DATABASE_URL,required"`
	UseSSL       bool   `env:"USE_SSL"       envDefault:"false"`
	SessionStore string `env:"SESSION_STORE" envDefault:"postgres"`
	RedisURL     string `env:"REDIS_URL"`

	HTTPAddr        string        `env:"HTTP_ADDR"        envDefault:":8000"`
	OriginsJSON     string        `env:"ORIGINS"          envDefault:"[]"`
	Debug           bool          `env:"DEBUG"            envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// TrustedProxiesRaw lists the proxy addresses or CIDRs whose forwarding
	// headers are believed. Empty means clients are keyed by peer address.
	TrustedProxiesRaw []string `env:"TRUSTED_PROXIES" envSeparator:","`

	AppName       string `env:"APP_NAME"       envDefault:"Phonetica"`
	SendEmails    bool   `env:"SEND_EMAILS"    envDefault:"true"`
	EmailLogin    string `env:"EMAIL_LOGIN"`
	EmailSender   string `env:"EMAIL_SENDER"`
	EmailPassword string `env:"EMAIL_PASSWORD"`
	SMTPHost      string `env:"SMTP_HOST"      envDefault:"smtp.gmail.com"`
	SMTPPort      int    `env:"SMTP_PORT"      envDefault:"465"`
	DocsURL       string `env:"DOCS_URL"`
	CommunityURL  string `env:"COMMUNITY_URL"`
	DashboardURL  string `env:"DASHBOARD_URL"`

	GoogleClientID        string        `env:"GOOGLE_CLIENT_ID"`
	GoogleSecretKey       string        `env:"GOOGLE_SECRET_KEY"`
	GoogleExchangeTimeout time.Duration `env:"GOOGLE_EXCHANGE_TIMEOUT" envDefault:"10s"`

	RateLimit              int           `env:"RATE_LIMIT"                envDefault:"10"`
	RateLimitWindow        time.Duration `env:"RATE_LIMIT_WINDOW"         envDefault:"1m"`
	RateLimitSweepInterval time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL" envDefault:"10m"`

	MetricsEnabled bool   `env:"METRICS_ENABLED"             envDefault:"false"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Origins is decoded from OriginsJSON.
	Origins []string `env:"-"`

	// TrustedProxies is parsed from TrustedProxiesRaw.
	TrustedProxies []netip.Prefix `env:"-"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv loads path into the environment when the file exists. Variables
// already set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads .env (if present) and the environment into a validated Config.
func Load() (Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := json.Unmarshal([]byte(cfg.OriginsJSON), &cfg.Origins); err != nil {
		return Config{}, fmt.Errorf("parse ORIGINS: %w", err)
	}
	proxies, err := ParsePrefixes(cfg.TrustedProxiesRaw)
	if err != nil {
		return Config{}, fmt.Errorf("parse TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies
	cfg.DatabaseURL = NormalizeDatabaseURL(cfg.DatabaseURL)
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	if c.AccessTokenExpireMinutes <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be > 0")
	}
	if c.RefreshTokenExpireDays <= 0 {
		return errors.New("REFRESH_TOKEN_EXPIRE_DAYS must be > 0")
	}
	if time.Duration(c.AccessTokenExpireMinutes)*time.Minute >= c.RefreshTTL() {
		return errors.New("access token TTL must be shorter than refresh token TTL")
	}
	switch c.SessionStore {
	case SessionStorePostgres, SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE %q is not supported", c.SessionStore)
	}
	if c.SendEmails && (c.EmailLogin == "" || c.EmailSender == "") {
		return errors.New("EMAIL_LOGIN and EMAIL_SENDER are required when SEND_EMAILS is true")
	}
	if c.RateLimit <= 0 || c.RateLimitWindow <= 0 || c.RateLimitSweepInterval <= 0 {
		return errors.New("rate limit settings must be > 0")
	}
	if c.GoogleExchangeTimeout <= 0 {
		return errors.New("GOOGLE_EXCHANGE_TIMEOUT must be > 0")
	}
	if len(c.JWTVerifyKeys) > 0 {
		if c.JWTKeyID == "" {
			return errors.New("JWT_KEY_ID is required with JWT_VERIFY_KEYS")
		}
		if key, ok := c.JWTVerifyKeys[c.JWTKeyID]; ok && key != c.SecretKey {
			return errors.New("JWT_VERIFY_KEYS maps JWT_KEY_ID to a key other than OAUTH_SECRET_KEY")
		}
	}
	return nil
}

// VerifyKeys returns the rotation key set including the current signing
// key, or nil when rotation is not configured.
func (c Config) VerifyKeys() map[string][]byte {
	if len(c.JWTVerifyKeys) == 0 {
		return nil
	}
	keys := make(map[string][]byte, len(c.JWTVerifyKeys)+1)
	for kid, key := range c.JWTVerifyKeys {
		keys[kid] = []byte(key)
	}
	keys[c.JWTKeyID] = []byte(c.SecretKey)
	return keys
}

// ParsePrefixes parses addresses and CIDRs. A bare address becomes a
// single-host prefix.
func ParsePrefixes(raw []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleSecretKey != ""
}

// NormalizeDatabaseURL drops a "+driver" suffix from the URL scheme, so
// "postgresql+asyncpg://..." becomes "postgresql://...".
func NormalizeDatabaseURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	if base, _, found := strings.Cut(scheme, "+"); found {
		scheme = base
	}
	return scheme + "://" + rest
}
