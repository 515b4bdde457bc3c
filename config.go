package phonauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config is the Engine configuration. Start from [DefaultConfig] and
// override what you need; [Builder.Build] clones and validates it.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Cookie    CookieConfig
	Federated FederatedConfig
	Activity  ActivityConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access and refresh token signing. Both token kinds
// carry the user's email as subject.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	// KeyID is written as the "kid" header of new tokens.
	KeyID string
	// VerifyKeys maps kid to verification key while signing keys rotate.
	// When set it must contain KeyID, and tokens are verified only by kid.
	VerifyKeys map[string][]byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing scheme for new hashes. Hashes of
// either scheme always verify.
type PasswordConfig struct {
	Algorithm  string // "bcrypt" (default) or "argon2id"
	BcryptCost int

	// argon2id parameters
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxConcurrent bounds concurrent hash operations. Zero means GOMAXPROCS.
	MaxConcurrent int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig applies to the Redis session store.
type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig sizes the in-process sliding window limiter that guards
// signup, login, Google login and refresh.
type RateLimitConfig struct {
	Enabled       bool
	Limit         int
	Window        time.Duration
	SweepInterval time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig describes the refresh token cookie.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

/*
====================================
FEDERATED CONFIG
====================================
*/

// FederatedConfig bounds the identity provider exchange separately from
// the request deadline.
type FederatedConfig struct {
	ExchangeTimeout time.Duration
}

/*
====================================
ACTIVITY CONFIG
====================================
*/

// ActivityConfig controls how often authenticated requests write last_active.
type ActivityConfig struct {
	TouchInterval time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. JWT.PrivateKey must still
// be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Algorithm:   "bcrypt",
			BcryptCost:  12,
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Session: SessionConfig{
			RedisPrefix: "rs",
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Limit:         10,
			Window:        time.Minute,
			SweepInterval: 10 * time.Minute,
		},
		Cookie: CookieConfig{
			Name:     "refreshToken",
			Path:     "/api/users/refresh",
			Secure:   true,
			HTTPOnly: true,
			SameSite: http.SameSiteStrictMode,
		},
		Federated: FederatedConfig{
			ExchangeTimeout: 10 * time.Second,
		},
		Activity: ActivityConfig{
			TouchInterval: 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT PrivateKey is required")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 PrivateKey must be at least 32 bytes")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}
	if len(c.JWT.VerifyKeys) > 0 {
		if strings.TrimSpace(c.JWT.KeyID) == "" {
			return errors.New("JWT KeyID is required with VerifyKeys")
		}
		if _, ok := c.JWT.VerifyKeys[c.JWT.KeyID]; !ok {
			return errors.New("JWT KeyID is not present in VerifyKeys")
		}
		for kid, key := range c.JWT.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return errors.New("JWT VerifyKeys contains an empty kid")
			}
			if c.JWT.SigningMethod == "hs256" && len(key) < 32 {
				return fmt.Errorf("hs256 verify key for kid %q must be at least 32 bytes", kid)
			}
		}
	}

	// Password
	switch strings.ToLower(c.Password.Algorithm) {
	case "bcrypt":
		if c.Password.BcryptCost < 10 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be within [10, 31]")
		}
	case "argon2id":
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
	default:
		return errors.New("unsupported password algorithm")
	}
	if c.Password.MaxConcurrent < 0 {
		return errors.New("Password MaxConcurrent must be >= 0")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			return errors.New("RateLimit Limit must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		if c.RateLimit.SweepInterval <= 0 {
			return errors.New("RateLimit SweepInterval must be > 0")
		}
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name must not be empty")
	}
	if !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie Path must be absolute")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	if c.Federated.ExchangeTimeout <= 0 {
		return errors.New("Federated ExchangeTimeout must be > 0")
	}
	if c.Activity.TouchInterval <= 0 {
		return errors.New("Activity TouchInterval must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}
