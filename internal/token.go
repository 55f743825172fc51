// Package internal holds the random-artifact helpers shared by the engine:
// opaque token IDs, secrets, numeric one-time codes, and the fixed-width
// encoding that joins an ID with its secret into a single presentable token.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

// Secrets are 32 bytes (256 bits), comfortably above the 128-bit floor for
// single-use credential artifacts. IDs are 16 bytes and only serve as lookup
// keys; they carry no authority without the secret.
const (
	idSize     = 16
	SecretSize = 32
	tokenSize  = idSize + SecretSize
)

var errTokenShape = errors.New("malformed token")

// ID is a random 128-bit handle rendered as unpadded base64url.
type ID [idSize]byte

func NewID() (ID, error) {
	var id ID
	_, err := rand.Read(id[:])
	return id, err
}

func (id ID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

func ParseID(s string) (ID, error) {
	var id ID
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, errTokenShape
	}
	if len(raw) != idSize {
		return id, errTokenShape
	}
	copy(id[:], raw)
	return id, nil
}

// NewSecret returns a fresh 256-bit secret.
func NewSecret() ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSecret is the digest stored server-side in place of the secret.
func HashSecret(secret [SecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// HashBytes digests arbitrary token material (access tokens, OTP codes).
func HashBytes(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// EncodeToken joins id and secret into the opaque string handed to callers.
func EncodeToken(id ID, secret [SecretSize]byte) string {
	var raw [tokenSize]byte
	copy(raw[:idSize], id[:])
	copy(raw[idSize:], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeToken splits a token back into its ID and secret.
func DecodeToken(token string) (ID, [SecretSize]byte, error) {
	var id ID
	var secret [SecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id, secret, errTokenShape
	}
	if len(raw) != tokenSize {
		return id, secret, errTokenShape
	}
	copy(id[:], raw[:idSize])
	copy(secret[:], raw[idSize:])
	return id, secret, nil
}

// NewNumericCode returns a uniformly random code of the given digit count,
// used for confirmation and SMS challenge codes.
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code length")
	}

	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
