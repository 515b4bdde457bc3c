// Package middleware adapts HTTP requests to phonauth.Engine calls.
//
//   - [RequestContext] copies client IP, User-Agent and request id into the
//     request context so the Engine can key rate limits, sessions and audit
//     events on them.
//   - [RateLimit] rejects callers over their window with 429.
//   - [Guard] resolves the bearer access token to a user.
//
// This package does not parse tokens or touch storage itself. Every
// decision is delegated to the Engine, and every failure is rendered by
// [WriteError] as {"detail": message}.
package middleware
