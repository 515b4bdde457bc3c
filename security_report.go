package phonauth

import (
	"net/http"
	"time"
)

// SecurityReport is a read-only summary of the Engine's security posture.
// The server logs it once at startup.
type SecurityReport struct {
	SigningAlgorithm  string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	PasswordAlgorithm string
	BcryptCost        int
	Argon2            PasswordConfigReport
	CookieSecure      bool
	CookieHTTPOnly    bool
	CookieSameSite    string
	RateLimitActive   bool
	RateLimit         int
	RateLimitWindow   time.Duration
	FederatedEnabled  bool
	WelcomeMail       bool
	AuditEnabled      bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm:  e.config.JWT.SigningMethod,
		AccessTTL:         e.config.JWT.AccessTTL,
		RefreshTTL:        e.config.JWT.RefreshTTL,
		PasswordAlgorithm: e.config.Password.Algorithm,
		BcryptCost:        e.config.Password.BcryptCost,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		CookieSecure:     e.config.Cookie.Secure,
		CookieHTTPOnly:   e.config.Cookie.HTTPOnly,
		CookieSameSite:   sameSiteName(e.config.Cookie.SameSite),
		RateLimitActive:  e.limiter != nil,
		RateLimit:        e.config.RateLimit.Limit,
		RateLimitWindow:  e.config.RateLimit.Window,
		FederatedEnabled: e.identity != nil,
		WelcomeMail:      e.notifier != nil,
		AuditEnabled:     e.audit != nil,
	}
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return "default"
	}
}
