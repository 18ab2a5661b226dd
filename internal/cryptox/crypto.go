// Package cryptox contains the cryptographic helpers of the token lifecycle:
// opaque refresh secrets, their one-way digests, signing-key generation and
// argon2id password hashing for the account directory.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// SecretSize is the number of random bytes behind a refresh secret or a
// generated signing key (256 bits).
const SecretSize = 32

// Argon2id parameters.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

var (
	// randReader is a seam for tests that need the random source to fail.
	randReader io.Reader = rand.Reader

	encoding = base64.RawURLEncoding

	ErrInvalidHash = errors.New("invalid password hash")
)

// RandomBytes returns n bytes from the secure random source.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return nil, fmt.Errorf("random source: %w", err)
	}
	return b, nil
}

// NewRefreshSecret returns a fresh opaque refresh secret: SecretSize random
// bytes, base64url-encoded without padding.
func NewRefreshSecret() (string, error) {
	b, err := RandomBytes(SecretSize)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(b), nil
}

// NewSigningKey returns a random HMAC key in the same textual form.
func NewSigningKey() (string, error) {
	return NewRefreshSecret()
}

// HashSecret returns base64url(SHA-256(raw)) without padding. This digest is
// the only form in which refresh secrets are ever stored.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return encoding.EncodeToString(sum[:])
}

// HashPassword derives an argon2id hash and encodes it together with its
// parameters and salt:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
func HashPassword(password []byte) (string, error) {
	salt, err := RandomBytes(argonSaltLen)
	if err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		encoding.EncodeToString(salt), encoding.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches the encoded argon2id hash.
// The comparison is constant time.
func VerifyPassword(encoded string, password []byte) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrInvalidHash
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, ErrInvalidHash
	}

	salt, err := encoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidHash
	}
	want, err := encoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, ErrInvalidHash
	}

	got := argon2.IDKey(password, salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// Wipe zeroes b. It is a no-op for nil.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
