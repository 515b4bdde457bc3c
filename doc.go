// Package phonauth is the authentication core of the Phonetica backend:
// password and Google sign-in, JWT access tokens, per-device refresh
// sessions and a sliding window rate limiter.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// phonauth is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator interfaces ([UserRepository], [SessionStore],
// [IdentityProvider], [Notifier], [RateLimiter]) and typed [Error] values.
// Flow orchestration, audit dispatch and rate limiting live under internal/.
// Storage, HTTP transport and the Google exchange live in sibling packages
// that depend on phonauth, never the other way round.
//
// # Errors
//
// Every operation returns either nil or an error whose [KindOf] maps to one
// transport status: validation 400, authentication 401, not found 404,
// rate limited 429, persistence and internal 500.
package phonauth
