// Package auth mints and verifies the stateless access tokens of gophauth.
//
// Access tokens are compact JWS strings (HS256) carrying sub, role[], iat,
// exp and jti. Nothing about them is persisted: validity is decided by the
// signature and exp alone.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the registered claims plus the caller's roles.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"role"`
}

var errUnknownKey = errors.New("unknown signing key")

// Signer issues and verifies access tokens with the keys of a Keyring.
// It is safe for concurrent use.
type Signer struct {
	keys *Keyring
	now  func() time.Time
}

// SignerOption customizes a Signer.
type SignerOption func(*Signer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

func NewSigner(keys *Keyring, opts ...SignerOption) *Signer {
	s := &Signer{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keys returns the ring the signer was built with.
func (s *Signer) Keys() *Keyring { return s.keys }

// Issue signs {sub, role, iat, exp, jti} with the current key. Timestamps
// are whole Unix seconds. An error here means the signing primitive itself
// failed and is a system error.
func (s *Signer) Issue(subject string, roles []string, ttl time.Duration) (string, error) {
	token, _, err := s.Mint(subject, roles, ttl)
	return token, err
}

// Mint is Issue that also returns the claims that were signed.
func (s *Signer) Mint(subject string, roles []string, ttl time.Duration) (string, *Claims, error) {
	now := s.now()

	r := make([]string, len(roles))
	copy(r, roles)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Roles: r,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.keys.CurrentID()

	signed, err := token.SignedString(s.keys.current())
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks the signature and expiry of tokenString.
//
// Client-correctable failures are reported as common.ErrMalformedToken (empty
// input, no segment separator, or a correctly signed token without a usable
// exp), common.ErrBadSignature (every other integrity failure, including a
// wrong segment count, empty or undecodable segments) and
// common.ErrTokenExpired (exp <= now, no leeway). Anything else is returned
// wrapped and must be treated as a system error.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	if !hasSeparator(tokenString) {
		return nil, common.ErrMalformedToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, s.keyFunc)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return nil, common.ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, common.ErrBadSignature
	default:
		return nil, fmt.Errorf("verify access token: %w", err)
	}
}

func (s *Signer) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	key, ok := s.keys.lookup(kid)
	if !ok {
		return nil, errUnknownKey
	}
	return key, nil
}

// hasSeparator reports whether token has any compact structure at all. A
// damaged token that still carries a separator is an integrity failure.
func hasSeparator(token string) bool {
	return token != "" && strings.Contains(token, ".")
}

// Holder publishes the active Signer to concurrent readers and lets the key
// watcher swap it after a rotation.
type Holder struct {
	p atomic.Pointer[Signer]
}

func NewHolder(s *Signer) *Holder {
	h := &Holder{}
	h.p.Store(s)
	return h
}

// Signer returns the active signer.
func (h *Holder) Signer() *Signer { return h.p.Load() }

// Swap installs s as the active signer.
func (h *Holder) Swap(s *Signer) { h.p.Store(s) }
