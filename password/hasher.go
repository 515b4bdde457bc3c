package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/semaphore"
)

// Algorithm names a hashing scheme.
type Algorithm string

const (
	// AlgorithmBcrypt is the default scheme.
	AlgorithmBcrypt Algorithm = "bcrypt"
	// AlgorithmArgon2id selects argon2id for new hashes.
	AlgorithmArgon2id Algorithm = "argon2id"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPasswordTooLong is returned when a bcrypt password exceeds 72 bytes.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	// ErrMalformedHash is returned by the scheme verifiers for unparsable hashes.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Options configures a Hasher.
type Options struct {
	Algorithm     Algorithm
	BcryptCost    int
	Argon2        Config
	MaxConcurrent int
}

// DefaultOptions returns bcrypt at DefaultBcryptCost with argon2id parameters
// ready for a later switch.
func DefaultOptions() Options {
	return Options{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: DefaultBcryptCost,
		Argon2: Config{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		MaxConcurrent: runtime.GOMAXPROCS(0),
	}
}

type scheme interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Hasher hashes with the configured primary scheme and verifies any supported
// scheme. It is safe for concurrent use.
type Hasher struct {
	algorithm Algorithm
	bcrypt    *Bcrypt
	argon2    *Argon2
	gate      *semaphore.Weighted
}

// New builds a Hasher from opts.
func New(opts Options) (*Hasher, error) {
	bc, err := NewBcrypt(opts.BcryptCost)
	if err != nil {
		return nil, err
	}
	ar, err := NewArgon2(opts.Argon2)
	if err != nil {
		return nil, err
	}

	switch opts.Algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("password algorithm %q is not supported", opts.Algorithm)
	}

	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	return &Hasher{
		algorithm: opts.Algorithm,
		bcrypt:    bc,
		argon2:    ar,
		gate:      semaphore.NewWeighted(int64(limit)),
	}, nil
}

// Algorithm returns the scheme used for new hashes.
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Hash hashes password with the primary scheme. It blocks while the hash gate
// is full and returns ctx.Err() if ctx ends first.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.gate.Release(1)

	return h.primary().Hash(password)
}

// Verify reports whether password matches encodedHash.
//
// An empty, malformed or unrecognised hash yields (false, nil). The only error
// Verify returns is ctx cancellation while waiting for the hash gate.
func (h *Hasher) Verify(ctx context.Context, password string, encodedHash string) (bool, error) {
	s := h.schemeFor(encodedHash)
	if s == nil {
		return false, nil
	}

	if err := h.gate.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.gate.Release(1)

	ok, err := s.Verify(password, encodedHash)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// NeedsRehash reports whether encodedHash should be replaced on the next
// successful verification: another scheme, weaker parameters or unparsable.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	s := h.schemeFor(encodedHash)
	if s == nil || s != h.primary() {
		return true
	}
	upgrade, err := s.NeedsUpgrade(encodedHash)
	return err != nil || upgrade
}

func (h *Hasher) primary() scheme {
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2
	}
	return h.bcrypt
}

func (h *Hasher) schemeFor(encodedHash string) scheme {
	switch {
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return h.bcrypt
	case strings.HasPrefix(encodedHash, "$"+algorithmID+"$"):
		return h.argon2
	default:
		return nil
	}
}
