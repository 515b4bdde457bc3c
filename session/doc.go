// Package session defines the refresh-session [Record] and a Redis-backed [Store]
// that keeps exactly one record per (user, device) pair.
//
// # Redis layout
//
// Each record lives in a hash with two fields: "tok" (SHA-256 of the refresh token)
// and "rec" (the compact binary encoding of the record). A token index key maps the
// token digest back to the record key. Upsert and Delete run as Lua scripts so the
// record and its index change together. Both keys expire at the record's ExpiresAt.
//
// # Architecture boundaries
//
// This package owns persistence of refresh sessions. It does NOT decode JWTs or
// decide whether a presented token is acceptable; the Engine does.
//
// # What this package must NOT do
//
//   - Import phonauth or jwt (no upward imports).
//   - Put raw tokens or device strings into Redis key names.
package session
