// Package postgres implements phonauth.UserRepository and
// phonauth.SessionStore on PostgreSQL through pgx.
//
// The schema lives in the migrations sub-package and is applied with goose
// by [Migrate]. Sessions are keyed by (user_id, device_info), so a second
// login from the same device overwrites the previous refresh token.
package postgres
