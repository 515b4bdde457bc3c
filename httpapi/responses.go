package httpapi

import (
	"time"

	"github.com/phonetica/phonauth"
)

type tokenBody struct {
	Token       string  `json:"token"`
	ExpiresDays float64 `json:"expires_days"`
}

type loginBody struct {
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Timezone    string    `json:"timezone"`
	AccessToken tokenBody `json:"access_token"`
	LastLogin   time.Time `json:"last_login"`
}

type userBody struct {
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Timezone       string    `json:"timezone"`
	NativeLanguage *string   `json:"native_language_code"`
	LastLogin      time.Time `json:"last_login"`
	HasAccess      bool      `json:"has_access"`
}

type messageBody struct {
	Message string `json:"message"`
}

func newUserBody(u phonauth.User) userBody {
	b := userBody{
		Email:     u.Email,
		Name:      u.Name,
		Timezone:  u.Timezone,
		LastLogin: u.LastLogin,
		HasAccess: u.HasAccess,
	}
	if u.NativeLanguage != "" {
		lang := u.NativeLanguage
		b.NativeLanguage = &lang
	}
	return b
}

func newTokenBody(t phonauth.AccessToken) tokenBody {
	return tokenBody{Token: t.Token, ExpiresDays: t.ExpiresDays}
}

func newLoginBody(res *phonauth.LoginResult) loginBody {
	return loginBody{
		Email:       res.User.Email,
		Name:        res.User.Name,
		Timezone:    res.User.Timezone,
		AccessToken: newTokenBody(res.Access),
		LastLogin:   res.User.LastLogin,
	}
}
