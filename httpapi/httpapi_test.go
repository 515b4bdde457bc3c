package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phonetica/phonauth"
	"github.com/phonetica/phonauth/httpapi"
	"github.com/phonetica/phonauth/storage/memory"
)

const testUA = "Mozilla/5.0 (test)"

type stubIdentity struct {
	id phonauth.Identity
}

func (s stubIdentity) Exchange(context.Context, string) (phonauth.Identity, error) {
	return s.id, nil
}

type apiHarness struct {
	handler  http.Handler
	users    *memory.Users
	sessions *memory.Sessions
}

func newAPI(t *testing.T, limit int, identity phonauth.IdentityProvider) *apiHarness {
	t.Helper()
	return newAPIWith(t, limit, identity, nil)
}

func newAPIWith(t *testing.T, limit int, identity phonauth.IdentityProvider, configure func(*httpapi.Deps)) *apiHarness {
	t.Helper()
	cfg := phonauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.BcryptCost = 10
	cfg.RateLimit.Limit = limit

	h := &apiHarness{users: memory.NewUsers(), sessions: memory.NewSessions()}
	b := phonauth.New().
		WithConfig(cfg).
		WithUserRepository(h.users).
		WithSessionStore(h.sessions)
	if identity != nil {
		b = b.WithIdentityProvider(identity)
	}
	e, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(e.Close)

	deps := httpapi.Deps{Engine: e, AllowedOrigins: []string{"https://app.example.com"}}
	if configure != nil {
		configure(&deps)
	}
	h.handler = httpapi.NewRouter(deps)
	return h
}

type call struct {
	method  string
	path    string
	body    string
	headers map[string]string
	cookie  *http.Cookie
	form    url.Values

	// remote overrides httptest's default peer 192.0.2.1:1234.
	remote string
}

func (h *apiHarness) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if c.form != nil {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	if c.remote != "" {
		req.RemoteAddr = c.remote
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func tzHeaders() map[string]string {
	return map[string]string{"X-Timezone": "Europe/Berlin", "User-Agent": testUA}
}

func (h *apiHarness) signup(t *testing.T, email, pw string) {
	t.Helper()
	rec := h.do(t, call{
		method:  http.MethodPost,
		path:    "/api/users/signup",
		body:    `{"email":"` + email + `","name":" Alice ","password":"` + pw + `"}`,
		headers: tzHeaders(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (h *apiHarness) login(t *testing.T, email, pw string) (string, *http.Cookie) {
	t.Helper()
	rec := h.do(t, call{
		method:  http.MethodPost,
		path:    "/api/users/login",
		body:    `{"email":"` + email + `","password":"` + pw + `"}`,
		headers: tzHeaders(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	access := body["access_token"].(map[string]any)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "refresh cookie not set")
	return access["token"].(string), cookie
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token, "User-Agent": testUA}
}

func TestSignup(t *testing.T) {
	h := newAPI(t, 1000, nil)

	rec := h.do(t, call{
		method:  http.MethodPost,
		path:    "/api/users/signup",
		body:    `{"email":"  Alice@Example.COM ","name":" Alice ","password":"secret"}`,
		headers: tzHeaders(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, "Alice", body["name"])
	assert.Equal(t, "Europe/Berlin", body["timezone"])
	assert.Equal(t, false, body["has_access"])
	assert.NotEmpty(t, body["last_login"])

	rec = h.do(t, call{
		method:  http.MethodPost,
		path:    "/api/users/signup",
		body:    `{"email":"alice@example.com","password":"other"}`,
		headers: tzHeaders(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decode(t, rec)["detail"])

	rec = h.do(t, call{
		method: http.MethodPost,
		path:   "/api/users/signup",
		body:   `{"email":"bob@example.com","password":"pw"}`,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "X-Timezone header is required", decode(t, rec)["detail"])
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	h := newAPI(t, 1000, nil)
	h.signup(t, "alice@example.com", "secret")

	rec := h.do(t, call{
		method:  http.MethodPost,
		path:    "/api/users/login/",
		body:    `{"email":"ALICE@example.com ","password":"secret"}`,
		headers: tzHeaders(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, "Alice", body["name"])
	assert.Contains(t, body, "last_login")
	access := body["access_token"].(map[string]any)
	assert.NotEmpty(t, access["token"])
	assert.InDelta(t, 30.0/1440, access["expires_days"], 1e-12)
	assert.NotContains(t, rec.Body.String(), "refresh")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "refreshToken", c.Name)
	assert.Equal(t, "/api/users/refresh", c.Path)
	assert.True(t, c.Secure)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, 30*24*60*60, c.MaxAge)

	rec2, err := h.sessions.FindByToken(context.Background(), c.Value)
	require.NoError(t, err)
	assert.Equal(t, testUA, rec2.Device)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newAPI(t, 1000, nil)
	h.signup(t, "alice@example.com", "secret")

	for _, body := range []string{
		`{"email":"alice@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"secret"}`,
	} {
		rec := h.do(t, call{method: http.MethodPost, path: "/api/users/login", body: body, headers: tzHeaders()})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Incorrect email or password", decode(t, rec)["detail"])
		assert.Empty(t, rec.Result().Cookies())
	}
}

func TestRefresh(t *testing.T) {
	h := newAPI(t, 1000, nil)
	h.signup(t, "alice@example.com", "secret")
	_, cookie := h.login(t, "alice@example.com", "secret")

	rec := h.do(t, call{method: http.MethodGet, path: "/api/users/refresh", cookie: &http.Cookie{Name: "refreshToken", Value: cookie.Value}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.InDelta(t, 30.0/1440, body["expires_days"], 1e-12)
	assert.Empty(t, rec.Result().Cookies(), "refresh must not touch the cookie")

	rec = h.do(t, call{method: http.MethodGet, path: "/api/users/refresh"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Refresh token is missing", decode(t, rec)["detail"])

	rec = h.do(t, call{method: http.MethodGet, path: "/api/users/refresh", cookie: &http.Cookie{Name: "refreshToken", Value: "garbage"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["detail"])
}

func TestWhoAmIAndUpdate(t *testing.T) {
	h := newAPI(t, 1000, nil)
	h.signup(t, "alice@example.com", "secret")
	access, _ := h.login(t, "alice@example.com", "secret")

	rec := h.do(t, call{method: http.MethodGet, path: "/api/users/whoami"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Could not validate credentials", decode(t, rec)["detail"])

	rec = h.do(t, call{method: http.MethodGet, path: "/api/users/whoami", headers: bearer(access)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "alice@example.com", decode(t, rec)["email"])

	rec = h.do(t, call{
		method:  http.MethodPut,
		path:    "/api/users",
		body:    `{"name":"  Alicia ","native_language_code":"de"}`,
		headers: bearer(access),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Alicia", body["name"])
	assert.Equal(t, "de", body["native_language_code"])
	assert.Equal(t, "Europe/Berlin", body["timezone"])

	u, err := h.users.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", u.Name)
}

func TestChangePassword(t *testing.T) {
	h := newAPI(t, 1000, nil)
	h.signup(t, "alice@example.com", "secret")
	access, _ := h.login(t, "alice@example.com", "secret")

	rec := h.do(t, call{
		method:  http.MethodPut,
		path:    "/api/users/password",
		body:    `{"current_password":"nope","new_password":"next"}`,
		headers: bearer(access),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Incorrect password", decode(t, rec)["message"])

	rec = h.do(t, call{
		method:  http.MethodPut,
		path:    "/api/users/password",
		body:    `{"current_password":"secret","new_password":"next"}`,
		headers: bearer(access),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password updated successfully", decode(t, rec)["message"])

	h.login(t, "alice@example.com", "next")
}

func TestLogout(t *testing.T) {
	h := newAPI(t, 1000, nil)
	h.signup(t, "alice@example.com", "secret")
	access, _ := h.login(t, "alice@example.com", "secret")

	rec := h.do(t, call{method: http.MethodPost, path: "/api/users/logout", headers: map[string]string{"Authorization": "Bearer " + access}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Device info is missing", decode(t, rec)["detail"])

	rec = h.do(t, call{method: http.MethodPost, path: "/api/users/logout", headers: bearer(access)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Logged out successfully", decode(t, rec)["message"])
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "refreshToken", cookies[0].Name)
	assert.Equal(t, "/api/users/refresh", cookies[0].Path)
	assert.Less(t, cookies[0].MaxAge, 0)
	assert.Equal(t, 0, h.sessions.Len())

	rec = h.do(t, call{method: http.MethodPost, path: "/api/users/logout", headers: bearer(access)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Refresh token is missing", decode(t, rec)["detail"])
}

func TestGoogleLoginUnverified(t *testing.T) {
	h := newAPI(t, 1000, stubIdentity{id: phonauth.Identity{Email: "g@example.com", EmailVerified: false}})

	rec := h.do(t, call{method: http.MethodPost, path: "/api/users/login/google", body: `{"code":"abc"}`, headers: tzHeaders()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email not verified", decode(t, rec)["detail"])
	assert.Equal(t, 0, h.users.Len())
	assert.Equal(t, 0, h.sessions.Len())
}

func TestGoogleLoginCreatesUser(t *testing.T) {
	h := newAPI(t, 1000, stubIdentity{id: phonauth.Identity{Email: "g@example.com", Name: "Gee", EmailVerified: true}})

	rec := h.do(t, call{method: http.MethodPost, path: "/api/users/login/google", body: `{"code":"abc"}`, headers: tzHeaders()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Gee", decode(t, rec)["name"])
	assert.Len(t, rec.Result().Cookies(), 1)

	u, err := h.users.FindByEmail(context.Background(), "g@example.com")
	require.NoError(t, err)
	assert.Empty(t, u.PasswordHash)
}

func TestPasswordGrant(t *testing.T) {
	h := newAPI(t, 1000, nil)
	h.signup(t, "alice@example.com", "secret")

	rec := h.do(t, call{method: http.MethodPost, path: "/api/token", form: url.Values{"username": {"Alice@example.com"}, "password": {"secret"}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "bearer", body["token_type"])
	assert.NotEmpty(t, body["access_token"])
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 0, h.sessions.Len())

	rec = h.do(t, call{method: http.MethodPost, path: "/api/token", form: url.Values{"username": {"alice@example.com"}, "password": {"bad"}}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitOnLimitedRoutes(t *testing.T) {
	h := newAPI(t, 10, nil)

	for i := 0; i < 10; i++ {
		rec := h.do(t, call{method: http.MethodGet, path: "/api/users/refresh"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := h.do(t, call{method: http.MethodPost, path: "/api/users/login", body: `{}`, headers: tzHeaders()})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", decode(t, rec)["detail"])

	rec = h.do(t, call{method: http.MethodGet, path: "/api/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	h := newAPI(t, 10, nil)

	badLogin := func(i int) *httptest.ResponseRecorder {
		headers := tzHeaders()
		headers["X-Forwarded-For"] = fmt.Sprintf("10.0.0.%d", i)
		headers["X-Real-IP"] = fmt.Sprintf("10.1.0.%d", i)
		return h.do(t, call{
			method:  http.MethodPost,
			path:    "/api/users/login",
			body:    `{"email":"alice@example.com","password":"guess"}`,
			headers: headers,
			remote:  "198.51.100.9:40000",
		})
	}
	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusUnauthorized, badLogin(i).Code)
	}
	rec := badLogin(10)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitKeysClientsBehindTrustedProxy(t *testing.T) {
	h := newAPIWith(t, 2, nil, func(d *httpapi.Deps) {
		d.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")}
	})

	refresh := func(xff string) int {
		return h.do(t, call{
			method:  http.MethodGet,
			path:    "/api/users/refresh",
			headers: map[string]string{"X-Forwarded-For": xff},
		}).Code
	}
	require.Equal(t, http.StatusUnauthorized, refresh("203.0.113.1"))
	// A client-supplied leftmost entry does not open a new window.
	require.Equal(t, http.StatusUnauthorized, refresh("1.2.3.4, 203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, refresh("5.6.7.8, 203.0.113.1"))

	assert.Equal(t, http.StatusUnauthorized, refresh("203.0.113.2"))
}

func TestPasswordGrantIsRateLimited(t *testing.T) {
	h := newAPI(t, 2, nil)
	form := url.Values{"username": {"alice@example.com"}, "password": {"guess"}}

	for i := 0; i < 2; i++ {
		rec := h.do(t, call{method: http.MethodPost, path: "/api/token", form: form})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := h.do(t, call{method: http.MethodPost, path: "/api/token", form: form})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	h := newAPI(t, 1000, nil)

	rec := h.do(t, call{
		method: http.MethodOptions,
		path:   "/api/users/login",
		headers: map[string]string{
			"Origin":                        "https://app.example.com",
			"Access-Control-Request-Method": http.MethodPost,
		},
	})
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = h.do(t, call{
		method: http.MethodOptions,
		path:   "/api/users/login",
		headers: map[string]string{
			"Origin":                        "https://evil.example.com",
			"Access-Control-Request-Method": http.MethodPost,
		},
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
