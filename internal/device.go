package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBindingValue returns the SHA-256 digest of v.
func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// DeviceKey returns a fixed-length key component for a free-form device
// descriptor such as a User-Agent header.
func DeviceKey(device string) string {
	sum := HashBindingValue(device)
	return hex.EncodeToString(sum[:])
}

// TokenKey returns the hex digest used to index a token without storing it in
// a key name.
func TokenKey(token string) string {
	sum := HashBindingValue(token)
	return hex.EncodeToString(sum[:])
}
