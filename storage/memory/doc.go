// Package memory provides mutex-guarded in-process implementations of
// phonauth.UserRepository and phonauth.SessionStore for tests and local
// development. Nothing survives a restart.
package memory
