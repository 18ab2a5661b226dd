// Package services contains server-side business logic: minting token pairs,
// rotating refresh tokens and checking account credentials.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// SignerSource yields the active access-token signer. *auth.Holder
// implements it, so key rotations take effect on the next call.
type SignerSource interface {
	Signer() *auth.Signer
}

// RefreshStore is the subset of tokenstore.Store used by the issuer.
type RefreshStore interface {
	Create(ctx context.Context, owner string) (string, *models.RefreshToken, error)
	Validate(ctx context.Context, raw string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, raw string) (string, *models.RefreshToken, error)
	Revoke(ctx context.Context, raw string) error
	RevokeAll(ctx context.Context, owner string) (int64, error)
	ListActive(ctx context.Context, owner string) ([]models.RefreshToken, error)
}

// LoginResult is a token pair together with the account it was issued to.
type LoginResult struct {
	TokenPair
	UserID  string
	Subject string
	Roles   []string
}

// AccountSource reports the account behind a subject with its current roles,
// already in the form they are embedded into tokens.
type AccountSource interface {
	Principal(ctx context.Context, subject string) (*Principal, error)
}

// TokenIssuer mints token pairs at login and rotates them at refresh.
type TokenIssuer struct {
	signers   SignerSource
	store     RefreshStore
	accounts  AccountSource
	accessTTL time.Duration
	metrics   *metrics.Collectors
	logger    logging.Logger
}

func NewTokenIssuer(signers SignerSource, store RefreshStore, accounts AccountSource, accessTTL time.Duration, m *metrics.Collectors, l logging.Logger) *TokenIssuer {
	return &TokenIssuer{
		signers:   signers,
		store:     store,
		accounts:  accounts,
		accessTTL: accessTTL,
		metrics:   m,
		logger:    l.With("module", "token_issuer"),
	}
}

// Login issues a fresh pair for subject. Either both tokens are returned or
// neither: if the refresh token cannot be stored the access token already
// minted is discarded.
func (s *TokenIssuer) Login(ctx context.Context, subject string, roles []string) (*TokenPair, error) {
	access, accessExp, err := s.mintAccess(subject, roles)
	if err != nil {
		return nil, err
	}

	refresh, rec, err := s.store.Create(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}
	s.metrics.TokenIssued(metrics.KindAccess)
	s.metrics.TokenIssued(metrics.KindRefresh)

	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: rec.ExpiresAt,
	}, nil
}

// Refresh consumes raw and returns a new pair with the owner's account. The
// access token carries the owner's roles as they are now, not as they were
// at login. It is signed before raw is consumed, so a signing failure leaves
// raw usable. A token that
// was already used, revoked or has expired fails with the matching
// common.ErrRefreshToken* error; a concurrent refresh of the same token
// loses with common.ErrRefreshTokenRevoked.
func (s *TokenIssuer) Refresh(ctx context.Context, raw string) (*LoginResult, error) {
	res, err := s.refresh(ctx, raw)
	s.metrics.Refresh(refreshResult(err))
	return res, err
}

func (s *TokenIssuer) refresh(ctx context.Context, raw string) (*LoginResult, error) {
	old, err := s.store.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}

	p, err := s.accounts.Principal(ctx, old.OwnerSubject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// the account behind the token is gone
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	access, accessExp, err := s.mintAccess(old.OwnerSubject, p.Roles)
	if err != nil {
		return nil, err
	}

	next, rec, err := s.store.Rotate(ctx, raw)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenIssued(metrics.KindAccess)
	s.metrics.TokenIssued(metrics.KindRefresh)

	return &LoginResult{
		TokenPair: TokenPair{
			AccessToken:           access,
			RefreshToken:          next,
			AccessTokenExpiresAt:  accessExp,
			RefreshTokenExpiresAt: rec.ExpiresAt,
		},
		UserID:  p.UserID,
		Subject: p.Subject,
		Roles:   p.Roles,
	}, nil
}

// Logout revokes raw. Repeated logouts with the same token succeed.
func (s *TokenIssuer) Logout(ctx context.Context, raw string) error {
	return s.store.Revoke(ctx, raw)
}

// LogoutAll revokes every refresh token of subject and returns the count.
func (s *TokenIssuer) LogoutAll(ctx context.Context, subject string) (int64, error) {
	return s.store.RevokeAll(ctx, subject)
}

// Sessions lists the live refresh tokens of subject.
func (s *TokenIssuer) Sessions(ctx context.Context, subject string) ([]models.RefreshToken, error) {
	return s.store.ListActive(ctx, subject)
}

// mintAccess signs an access token; callers count it once the pair is
// complete.
func (s *TokenIssuer) mintAccess(subject string, roles []string) (string, time.Time, error) {
	token, claims, err := s.signers.Signer().Mint(subject, roles, s.accessTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

func refreshResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, common.ErrRefreshTokenNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, common.ErrRefreshTokenRevoked):
		return metrics.ResultRevoked
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return metrics.ResultExpired
	case common.IsClientError(err):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}
