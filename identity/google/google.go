// Package google implements phonauth.IdentityProvider for Google sign-in.
//
// The browser obtains an authorization code through the Google popup flow
// and posts it to the API. The provider trades the code at the token
// endpoint (redirect URI "postmessage") and reads the OpenID userinfo v3
// document with the resulting access token.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/phonetica/phonauth"
)

// UserInfoURL is Google's OpenID Connect userinfo endpoint.
const UserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// PopupRedirectURL is the redirect URI Google expects for codes obtained
// by the JavaScript popup flow.
const PopupRedirectURL = "postmessage"

// ErrMissingClient is returned by New without client credentials.
var ErrMissingClient = errors.New("google: client id and secret are required")

// Config configures a Provider. Zero endpoints fall back to Google's.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	HTTPClient   *http.Client
}

// Provider exchanges Google authorization codes for identities.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	client      *http.Client
}

var _ phonauth.IdentityProvider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingClient
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = PopupRedirectURL
	}
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = googleoauth.Endpoint
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = UserInfoURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: cfg.UserInfoURL,
		client:      cfg.HTTPClient,
	}, nil
}

type userInfo struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

// Exchange trades code for an access token and returns the userinfo it
// grants. A code the token endpoint refuses yields
// phonauth.ErrIdentityRejected. Transport failures are returned as-is.
func (p *Provider) Exchange(ctx context.Context, code string) (phonauth.Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			return phonauth.Identity{}, fmt.Errorf("%w: %s", phonauth.ErrIdentityRejected, re.ErrorCode)
		}
		return phonauth.Identity{}, fmt.Errorf("google token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return phonauth.Identity{}, fmt.Errorf("google userinfo request: %w", err)
	}
	tok.SetAuthHeader(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return phonauth.Identity{}, fmt.Errorf("google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return phonauth.Identity{}, fmt.Errorf("google userinfo: unexpected status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return phonauth.Identity{}, fmt.Errorf("google userinfo decode: %w", err)
	}
	// A missing email is left for the login flow to refuse as unverified.
	return phonauth.Identity{
		Email:         strings.TrimSpace(info.Email),
		Name:          strings.TrimSpace(info.Name),
		EmailVerified: info.EmailVerified,
	}, nil
}
