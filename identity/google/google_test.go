package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"github.com/phonetica/phonauth"
)

type fakeGoogle struct {
	srv        *httptest.Server
	tokenCalls int
	gotCode    string
	gotRedir   string
	gotAuth    string
	userinfo   map[string]any
	infoStatus int
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{infoStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		f.gotCode = r.PostForm.Get("code")
		f.gotRedir = r.PostForm.Get("redirect_uri")
		w.Header().Set("Content-Type", "application/json")
		if f.gotCode != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"ya29.test","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.infoStatus)
		_ = json.NewEncoder(w).Encode(f.userinfo)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoogle) provider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.srv.URL + "/auth",
			TokenURL:  f.srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: f.srv.URL + "/userinfo",
		HTTPClient:  f.srv.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestExchangeReturnsIdentity(t *testing.T) {
	f := newFakeGoogle(t)
	f.userinfo = map[string]any{"email": " Dana@Example.com ", "name": "Dana", "email_verified": true}

	id, err := f.provider(t).Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if id.Email != "Dana@Example.com" || id.Name != "Dana" || !id.EmailVerified {
		t.Fatalf("unexpected identity %+v", id)
	}
	if f.gotRedir != PopupRedirectURL {
		t.Fatalf("redirect_uri = %q, want %q", f.gotRedir, PopupRedirectURL)
	}
	if f.gotAuth != "Bearer ya29.test" {
		t.Fatalf("userinfo Authorization = %q", f.gotAuth)
	}
}

func TestExchangeUnverifiedPassesThrough(t *testing.T) {
	f := newFakeGoogle(t)
	f.userinfo = map[string]any{"email": "eve@example.com", "email_verified": false}

	id, err := f.provider(t).Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if id.EmailVerified {
		t.Fatal("expected unverified identity")
	}
}

func TestExchangeRejectedCode(t *testing.T) {
	f := newFakeGoogle(t)

	_, err := f.provider(t).Exchange(context.Background(), "stale-code")
	if !errors.Is(err, phonauth.ErrIdentityRejected) {
		t.Fatalf("expected ErrIdentityRejected, got %v", err)
	}
	if f.tokenCalls != 1 {
		t.Fatalf("token endpoint called %d times", f.tokenCalls)
	}
}

func TestExchangeUserInfoFailure(t *testing.T) {
	f := newFakeGoogle(t)
	f.infoStatus = http.StatusServiceUnavailable
	f.userinfo = map[string]any{}

	_, err := f.provider(t).Exchange(context.Background(), "good-code")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, phonauth.ErrIdentityRejected) {
		t.Fatalf("upstream outage must not look like a rejected code: %v", err)
	}
}

func TestExchangeUnreachable(t *testing.T) {
	f := newFakeGoogle(t)
	p := f.provider(t)
	f.srv.Close()

	_, err := p.Exchange(context.Background(), "good-code")
	if err == nil || errors.Is(err, phonauth.ErrIdentityRejected) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{ClientID: "id"}); !errors.Is(err, ErrMissingClient) {
		t.Fatalf("expected ErrMissingClient, got %v", err)
	}
	p, err := New(Config{ClientID: "id", ClientSecret: "s"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.userInfoURL != UserInfoURL || p.oauth.RedirectURL != PopupRedirectURL {
		t.Fatalf("defaults not applied: %+v", p.oauth)
	}
}
