// Package httpapi serves the phonauth Engine over HTTP with chi.
//
// Every route lives under /api. Errors are rendered by
// middleware.WriteError as {"detail": message}; the refresh token travels
// only in the refreshToken cookie scoped to /api/users/refresh.
package httpapi
