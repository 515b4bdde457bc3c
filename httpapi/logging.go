package httpapi

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/phonetica/phonauth"
)

// requestLogger writes one log line per request. 5xx responses log at
// Error, 4xx at Warn and the rest at Info.
func requestLogger(logger phonauth.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
				"remote", r.RemoteAddr,
			}
			switch {
			case status >= 500:
				logger.Error(r.Context(), "http request", args...)
			case status >= 400:
				logger.Warn(r.Context(), "http request", args...)
			default:
				logger.Info(r.Context(), "http request", args...)
			}
		})
	}
}
