// Package tokenstore issues, validates, rotates and revokes refresh tokens.
//
// A refresh token is an opaque random secret handed to the client once.
// Only its SHA-256 hash is persisted, and lookups go through that hash.
// Records are never deleted: revocation is a one-way flag kept for audit.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

// DefaultTTL is the refresh token lifetime when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Store is safe for concurrent use. It keeps no cache: every validation
// reads the backend.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  logging.Logger
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New builds a Store over backend. A non-positive ttl selects DefaultTTL.
func New(backend Backend, ttl time.Duration, l logging.Logger, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		logger:  l.With("module", "tokenstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL is the lifetime given to new refresh tokens.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create mints a refresh token for owner and persists its hash. The raw
// secret is returned to the caller and never stored.
func (s *Store) Create(ctx context.Context, owner string) (string, *models.RefreshToken, error) {
	raw, rec, err := s.mint(owner)
	if err != nil {
		return "", nil, err
	}
	if err := s.backend.Insert(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("store refresh token: %w", err)
	}
	s.logger.Debug(ctx, "refresh token created", "owner", owner, "hash", rec.HashPrefix())
	return raw, rec, nil
}

// Validate returns the live record for raw, or one of
// common.ErrRefreshTokenNotFound, ErrRefreshTokenRevoked and
// ErrRefreshTokenExpired. Other errors come from the backend.
func (s *Store) Validate(ctx context.Context, raw string) (*models.RefreshToken, error) {
	if raw == "" {
		return nil, common.ErrRefreshTokenNotFound
	}
	rec, err := s.backend.FindByHash(ctx, cryptox.HashSecret(raw))
	if err := classify(rec, err, s.now()); err != nil {
		return nil, err
	}
	return rec, nil
}

// Revoke marks raw as revoked. Revoking an already revoked or expired
// token succeeds; only an unknown token is an error.
func (s *Store) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return common.ErrRefreshTokenNotFound
	}
	hash := cryptox.HashSecret(raw)

	flipped, err := s.backend.Revoke(ctx, hash, s.now())
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if flipped {
		s.logger.Debug(ctx, "refresh token revoked", "hash", hash[:8])
		return nil
	}

	if _, err := s.backend.FindByHash(ctx, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrRefreshTokenNotFound
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Rotate consumes raw and issues its successor for the same owner. Of any
// number of concurrent rotations of one token exactly one succeeds; the
// others get common.ErrRefreshTokenRevoked.
func (s *Store) Rotate(ctx context.Context, raw string) (string, *models.RefreshToken, error) {
	old, err := s.Validate(ctx, raw)
	if err != nil {
		return "", nil, err
	}

	next, rec, err := s.mint(old.OwnerSubject)
	if err != nil {
		return "", nil, err
	}

	if err := s.backend.Rotate(ctx, old.Hash, rec.CreatedAt, rec); err != nil {
		if common.IsClientError(err) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.logger.Info(ctx, "refresh token rotated", "owner", old.OwnerSubject, "from", old.HashPrefix(), "to", rec.HashPrefix())
	return next, rec, nil
}

// RevokeAll revokes every live refresh token of owner.
func (s *Store) RevokeAll(ctx context.Context, owner string) (int64, error) {
	n, err := s.backend.RevokeAllForOwner(ctx, owner, s.now())
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.logger.Info(ctx, "refresh tokens revoked", "owner", owner, "count", n)
	return n, nil
}

// ListActive returns owner's unrevoked, unexpired tokens, newest first.
func (s *Store) ListActive(ctx context.Context, owner string) ([]models.RefreshToken, error) {
	recs, err := s.backend.ListActiveForOwner(ctx, owner, s.now())
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	return recs, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

func (s *Store) mint(owner string) (string, *models.RefreshToken, error) {
	raw, err := cryptox.NewRefreshSecret()
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	return raw, &models.RefreshToken{
		ID:           uuid.NewString(),
		Hash:         cryptox.HashSecret(raw),
		OwnerSubject: owner,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}, nil
}
