package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// Floors enforced on both configuration and stored hashes.
const (
	minMemoryKB    uint32 = 8 * 1024
	minSaltLength         = 16
	minKeyLength          = 16
)

// Config holds argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password argon2 memory must be >= %d KiB", minMemoryKB)
	case c.Time == 0:
		return errors.New("password argon2 time must be >= 1")
	case c.Parallelism == 0:
		return errors.New("password argon2 parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password argon2 salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password argon2 key length must be >= %d", minKeyLength)
	}
	return nil
}

// phc is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

func parsePHC(s string) (phc, error) {
	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != algorithmID {
		return phc{}, errors.New("not an argon2id PHC string")
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return phc{}, errors.New("bad version field")
	}
	if version != argon2.Version {
		return phc{}, fmt.Errorf("argon2 version %d is not supported", version)
	}

	var p phc
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism); err != nil {
		return phc{}, errors.New("bad parameter field")
	}
	if p.memory < minMemoryKB || p.time == 0 || p.parallelism == 0 {
		return phc{}, errors.New("parameters below floor")
	}

	var err error
	if p.salt, err = decodeB64(fields[4]); err != nil || len(p.salt) < minSaltLength {
		return phc{}, errors.New("bad salt")
	}
	if p.key, err = decodeB64(fields[5]); err != nil || len(p.key) == 0 {
		return phc{}, errors.New("bad key")
	}
	return p, nil
}

// decodeB64 accepts both the unpadded PHC form and padded base64.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Argon2 hashes and verifies argon2id PHC strings.
type Argon2 struct {
	cfg Config
}

// NewArgon2 returns an argon2id scheme after checking cfg against the
// minimum cost floor.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash derives a freshly salted argon2id hash. Password bytes are used as
// given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	return phc{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        salt,
		key:         argon2.IDKey([]byte(password), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength),
	}.String(), nil
}

// Verify recomputes the key with the stored parameters and compares in
// constant time. Unparsable input returns ErrMalformedHash.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	got := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(got, p.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash is weaker than the configured
// parameters or uses a different key length.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := p.memory < a.cfg.Memory ||
		p.time < a.cfg.Time ||
		p.parallelism < a.cfg.Parallelism ||
		uint32(len(p.key)) != a.cfg.KeyLength
	return weaker, nil
}
