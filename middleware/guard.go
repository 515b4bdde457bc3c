package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/phonetica/phonauth"
)

type userContextKey struct{}

// UserFromContext returns the user stored by [Guard].
func UserFromContext(ctx context.Context) (phonauth.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(phonauth.User)
	return u, ok
}

// WithUser stores u the way [Guard] does.
func WithUser(ctx context.Context, u phonauth.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// Guard requires a valid bearer access token and stores its user on the
// request context.
func Guard(engine *phonauth.Engine, onError ErrorHandler) func(http.Handler) http.Handler {
	onError = orDefault(onError)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				onError(w, r, phonauth.ErrCredentialsInvalid)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				onError(w, r, phonauth.ErrCredentialsInvalid)
				return
			}

			u, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
