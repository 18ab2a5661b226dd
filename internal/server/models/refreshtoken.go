package models

import "time"

// RefreshToken is the persisted record of an issued refresh secret. The raw
// secret itself is never stored: Hash is base64url(SHA-256(raw)).
//
// Records are never deleted. Revoked only ever flips false -> true.
type RefreshToken struct {
	ID           string
	Hash         string
	OwnerSubject string
	Revoked      bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
}

// ExpiredAt reports whether the token is past its lifetime at now.
// ExpiresAt itself is already expired.
func (t *RefreshToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// HashPrefix is a short, log-safe reference to the record.
func (t *RefreshToken) HashPrefix() string {
	if len(t.Hash) <= 8 {
		return t.Hash
	}
	return t.Hash[:8]
}
