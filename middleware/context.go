package middleware

import (
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/phonetica/phonauth"
)

// RequestContext stores the client address, User-Agent and chi request id
// on the request context. Mount it after [RealIP] so clients behind a
// trusted proxy are keyed by their own address.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = phonauth.WithClientIP(ctx, ClientIP(r))
		ctx = phonauth.WithUserAgent(ctx, r.UserAgent())
		if id := chimw.GetReqID(ctx); id != "" {
			ctx = phonauth.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
