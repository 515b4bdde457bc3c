// Package rate provides the in-memory sliding-window limiter that guards the
// credential endpoints (signup, login, federated login, refresh) per client address.
//
// # Window semantics
//
// Each address keeps the timestamps of its recent allowed requests. A check drops
// timestamps that are no longer inside the trailing window, rejects when the
// remaining count is at the limit, and otherwise appends now. The check and the
// append happen under one mutex.
//
// # Lifecycle
//
// The ledger is bounded by a periodic [Limiter.Sweep] driven by [Limiter.Run]. The
// owner of the process starts Run and stops it by cancelling its context.
//
// # What this package must NOT do
//
//   - Share state across processes (no Redis, no global instance).
//   - Be imported outside the phonauth module.
package rate
