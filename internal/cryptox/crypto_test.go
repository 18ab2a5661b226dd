package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNewRefreshSecret_EncodingAndEntropy(t *testing.T) {
	a, err := NewRefreshSecret()
	require.NoError(t, err)
	b, err := NewRefreshSecret()
	require.NoError(t, err)

	assert.Len(t, a, 43, "32 bytes base64url without padding")
	assert.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, SecretSize)
}

func TestNewRefreshSecret_RandomFailure(t *testing.T) {
	orig := randReader
	randReader = failingReader{}
	t.Cleanup(func() { randReader = orig })

	_, err := NewRefreshSecret()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy exhausted")
}

func TestHashSecret(t *testing.T) {
	raw := "some-raw-secret"
	sum := sha256.Sum256([]byte(raw))

	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), HashSecret(raw))
	assert.Equal(t, HashSecret(raw), HashSecret(raw))
	assert.NotEqual(t, raw, HashSecret(raw))
	assert.NotEqual(t, HashSecret("a"), HashSecret("b"))
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword([]byte("x"))
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=65536,t=1,p=4$")

	ok, err := VerifyPassword(hash, []byte("x"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, []byte("y"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a, err := HashPassword([]byte("same"))
	require.NoError(t, err)
	b, err := HashPassword([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPassword_InvalidEncodings(t *testing.T) {
	for _, enc := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$",
	} {
		_, err := VerifyPassword(enc, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidHash, enc)
	}
}

func TestWipe(t *testing.T) {
	buf := []byte{1, 2, 3}
	Wipe(buf)
	assert.Equal(t, []byte{0, 0, 0}, buf)
	Wipe(nil)
}
