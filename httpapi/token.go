package httpapi

import (
	"net/http"

	"github.com/phonetica/phonauth"
	"github.com/phonetica/phonauth/middleware"
)

type passwordGrantBody struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleToken implements the OAuth2 password grant form used by API
// explorers. It issues an access token only.
func (a *api) handleToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		a.fail(w, r, &phonauth.Error{Kind: phonauth.KindValidation, Message: "Invalid form body", Err: err})
		return
	}

	tok, err := a.engine.PasswordGrant(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, passwordGrantBody{AccessToken: tok.Token, TokenType: "bearer"})
}
