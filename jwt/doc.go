// Package jwt encodes and decodes the signed subject tokens used for access and
// refresh credentials. Decode failures collapse into ErrInvalidToken.
package jwt
