package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// MinSecretSize is the shortest HMAC secret accepted by NewKeyring.
const MinSecretSize = 16

var ErrWeakSecret = errors.New("signing secret too short")

// Keyring holds the HMAC secrets a Signer may use. Tokens are always signed
// with the current key; any key in the ring verifies tokens that name it in
// their "kid" header, so tokens issued before a rotation stay valid until
// they expire.
type Keyring struct {
	currentID string
	keys      map[string][]byte
}

// KeyID derives a stable, non-secret identifier for a secret.
func KeyID(secret []byte) string {
	sum := sha256.Sum256(secret)
	return base64.RawURLEncoding.EncodeToString(sum[:6])
}

// NewKeyring builds a ring whose only (and current) key is secret.
func NewKeyring(secret []byte) (*Keyring, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrWeakSecret
	}
	id := KeyID(secret)
	return &Keyring{
		currentID: id,
		keys:      map[string][]byte{id: cloneBytes(secret)},
	}, nil
}

// Rotate returns a new ring signing with secret. The current key of k is
// retained for verification; keys older than that are dropped.
func (k *Keyring) Rotate(secret []byte) (*Keyring, error) {
	next, err := NewKeyring(secret)
	if err != nil {
		return nil, err
	}
	if next.currentID != k.currentID {
		next.keys[k.currentID] = k.keys[k.currentID]
	}
	return next, nil
}

// CurrentID is the kid stamped on newly issued tokens.
func (k *Keyring) CurrentID() string { return k.currentID }

// IDs lists every key id the ring can verify.
func (k *Keyring) IDs() []string {
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	return ids
}

func (k *Keyring) current() []byte { return k.keys[k.currentID] }

func (k *Keyring) lookup(id string) ([]byte, bool) {
	key, ok := k.keys[id]
	return key, ok
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
