package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/phonetica/phonauth"
)

// ErrorHandler renders err for the client. [WriteError] is the default.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch phonauth.KindOf(err) {
	case phonauth.KindValidation:
		return http.StatusBadRequest
	case phonauth.KindAuthentication:
		return http.StatusUnauthorized
	case phonauth.KindNotFound:
		return http.StatusNotFound
	case phonauth.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as {"detail": message} with the status of its kind.
// Internal causes never reach the body.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	status := StatusOf(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	WriteJSON(w, status, map[string]string{"detail": phonauth.MessageOf(err)})
}

// WriteJSON writes v as a JSON response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func orDefault(h ErrorHandler) ErrorHandler {
	if h == nil {
		return WriteError
	}
	return h
}
