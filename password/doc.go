// Package password implements password hashing and verification with bcrypt defaults
// and argon2id as an alternative scheme.
//
// # Output format
//
// Hashes are self-describing strings. bcrypt hashes use the modular crypt format
// ($2a$/$2b$/$2y$), argon2id hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] dispatches verification on the hash prefix, so a deployment can switch
// its primary scheme without invalidating stored hashes. [Hasher.NeedsRehash]
// reports hashes produced by another scheme or with weaker parameters.
//
// # Concurrency
//
// Hashing is CPU-bound. [Hasher] admits at most MaxConcurrent hash or verify calls
// at a time and makes the rest wait on their context.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other phonauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
