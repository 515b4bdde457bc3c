package middleware

import (
	"net/http"

	"github.com/phonetica/phonauth"
)

// RateLimit rejects requests whose client address is over its window.
func RateLimit(engine *phonauth.Engine, onError ErrorHandler) func(http.Handler) http.Handler {
	onError = orDefault(onError)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := engine.CheckRate(r.Context(), ClientIP(r)); err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
