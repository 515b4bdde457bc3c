// Package flows contains the orchestrators behind every Engine operation.
//
// Each Run function (RunSignup, RunLogin, RunRefresh, etc.) takes the Deps
// struct and returns a result or a host error from Deps.Errors. Flows own no
// resources: the user repository, session store, hasher, token codec and
// identity exchange are all reached through Deps.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import phonauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
