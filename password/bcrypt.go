package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost matches the cost used by the original user table hashes.
	DefaultBcryptCost = 12
	minBcryptCost     = 10
	maxBcryptBytes    = 72
)

// Bcrypt hashes and verifies bcrypt modular crypt strings.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt scheme with the given cost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < minBcryptCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password bcrypt cost must be between %d and %d", minBcryptCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash returns a salted bcrypt hash of password.
func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxBcryptBytes {
		return "", ErrPasswordTooLong
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(out), nil
}

// Verify compares password with encodedHash. A mismatch is (false, nil); any
// other bcrypt failure is reported as ErrMalformedHash.
func (b *Bcrypt) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsUpgrade reports whether encodedHash uses a lower cost than the receiver.
func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}
