package httpapi

import (
	"net/http"
	"time"

	"github.com/phonetica/phonauth"
)

func (a *api) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	cfg := a.engine.Config()
	c := refreshCookie(cfg.Cookie)
	c.Value = token
	c.MaxAge = int(cfg.JWT.RefreshTTL / time.Second)
	c.Expires = expiresAt.UTC()
	http.SetCookie(w, c)
}

// clearRefreshCookie expires the cookie with the same attributes it was set
// with so browsers match and drop it.
func (a *api) clearRefreshCookie(w http.ResponseWriter) {
	c := refreshCookie(a.engine.Config().Cookie)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, c)
}

func (a *api) refreshCookieValue(r *http.Request) string {
	c, err := r.Cookie(a.engine.Config().Cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func refreshCookie(cfg phonauth.CookieConfig) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.Name,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.SameSite,
	}
}
