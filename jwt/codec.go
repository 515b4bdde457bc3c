package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret. It is the default.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// ErrInvalidToken is the only error Decode returns. Expired, malformed and
// badly signed tokens are indistinguishable to the caller.
var ErrInvalidToken = errors.New("invalid token")

// Config configures a Codec.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey is the HS256 secret or the Ed25519 private key (raw or PEM).
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Leeway     time.Duration
	KeyID      string
	// VerifyKeys maps kid to verification key during key rotation.
	VerifyKeys map[string][]byte
	// Now overrides the clock used for iat and expiry checks.
	Now func() time.Time
}

// Claims is the payload carried by access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// Codec encodes and decodes signed subject tokens. It is safe for concurrent use.
type Codec struct {
	config    Config
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
}

// NewCodec validates cfg and resolves its keys once.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	c := &Codec{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		c.method = jwt.SigningMethodHS256
		c.signKey = cfg.PrivateKey
		c.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("ed25519 requires private key")
		}
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		c.signKey = priv
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			c.verifyKey = pub
		} else {
			c.verifyKey = priv.Public()
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if err := c.checkVerifyKeys(); err != nil {
		return nil, err
	}

	return c, nil
}

// checkVerifyKeys validates the rotation set for either signing method.
func (c *Codec) checkVerifyKeys() error {
	if len(c.config.VerifyKeys) == 0 {
		return nil
	}
	if _, ok := c.config.VerifyKeys[c.config.KeyID]; !ok || c.config.KeyID == "" {
		return errors.New("KeyID is not present in VerifyKeys")
	}
	for kid, key := range c.config.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return errors.New("verify key map contains empty kid")
		}
		if _, err := c.keyBytesToVerifyKey(key); err != nil {
			return fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
		}
	}
	return nil
}

// Encode signs a token for subject that expires at expiresAt. Every token
// carries a random jti, so two encodes never produce the same string.
func (c *Codec) Encode(subject string, expiresAt time.Time) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(c.config.Now()),
			Issuer:    c.config.Issuer,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(c.method, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}
	return token.SignedString(c.signKey)
}

// Decode verifies tokenStr and returns its subject.
func (c *Codec) Decode(tokenStr string) (string, error) {
	claims, err := c.parse(tokenStr)
	if err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (c *Codec) parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.config.Now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if len(c.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			key, ok := c.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return c.keyBytesToVerifyKey(key)
		}
		if c.config.KeyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != c.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return c.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (c *Codec) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	if c.config.SigningMethod == MethodHS256 {
		if len(key) == 0 {
			return nil, errors.New("empty hs256 secret")
		}
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
