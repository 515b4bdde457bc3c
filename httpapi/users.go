package httpapi

import (
	"net/http"

	"github.com/phonetica/phonauth"
	"github.com/phonetica/phonauth/middleware"
)

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	Code string `json:"code"`
}

type updateUserRequest struct {
	Name           *string `json:"name"`
	Timezone       *string `json:"timezone"`
	NativeLanguage *string `json:"native_language_code"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, err)
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	tz, err := timezoneHeader(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	u, err := a.engine.Signup(r.Context(), phonauth.SignupInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Timezone: tz,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newUserBody(u))
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	tz, err := timezoneHeader(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.engine.Login(r.Context(), phonauth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Timezone: tz,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	middleware.WriteJSON(w, http.StatusOK, newLoginBody(res))
}

func (a *api) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	tz, err := timezoneHeader(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req googleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.engine.LoginWithGoogle(r.Context(), req.Code, tz)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	middleware.WriteJSON(w, http.StatusOK, newLoginBody(res))
}

// handleRefresh mints a new access token. The refresh cookie is left as is.
func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tok, err := a.engine.Refresh(r.Context(), a.refreshCookieValue(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newTokenBody(tok))
}

func (a *api) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, newUserBody(u))
}

func (a *api) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	updated, err := a.engine.UpdateProfile(r.Context(), u, phonauth.ProfileUpdate{
		Name:           req.Name,
		Timezone:       req.Timezone,
		NativeLanguage: req.NativeLanguage,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newUserBody(updated))
}

func (a *api) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	changed, err := a.engine.ChangePassword(r.Context(), u, req.CurrentPassword, req.NewPassword)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !changed {
		middleware.WriteJSON(w, http.StatusOK, messageBody{Message: "Incorrect password"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageBody{Message: "Password updated successfully"})
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	if err := a.engine.Logout(r.Context(), u); err != nil {
		a.fail(w, r, err)
		return
	}
	a.clearRefreshCookie(w)
	middleware.WriteJSON(w, http.StatusOK, messageBody{Message: "Logged out successfully"})
}
