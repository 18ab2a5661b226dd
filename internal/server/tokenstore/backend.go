package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Backend is the persistence contract of the Store. Every method must be
// safe for concurrent use, and Revoke and Rotate must be atomic
// compare-and-set operations on the revoked flag.
type Backend interface {
	Insert(ctx context.Context, rec *models.RefreshToken) error

	// FindByHash returns common.ErrorNotFound when no record matches.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)

	// Revoke flips revoked false -> true and reports whether this call did it.
	// Unknown hashes report false without error.
	Revoke(ctx context.Context, hash string, now time.Time) (bool, error)

	// Rotate revokes oldHash, provided it is unrevoked and unexpired at now,
	// and inserts next, as one atomic step. When the old record cannot be
	// consumed nothing is written and the result is one of
	// common.ErrRefreshTokenNotFound, ErrRefreshTokenRevoked or
	// ErrRefreshTokenExpired.
	Rotate(ctx context.Context, oldHash string, now time.Time, next *models.RefreshToken) error

	RevokeAllForOwner(ctx context.Context, owner string, now time.Time) (int64, error)
	ListActiveForOwner(ctx context.Context, owner string, now time.Time) ([]models.RefreshToken, error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

// classify explains why rec could not be consumed at now. err is the
// result of the lookup that produced rec.
func classify(rec *models.RefreshToken, err error, now time.Time) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return common.ErrRefreshTokenNotFound
	case err != nil:
		return err
	case rec.Revoked:
		return common.ErrRefreshTokenRevoked
	case rec.ExpiredAt(now):
		return common.ErrRefreshTokenExpired
	default:
		return nil
	}
}
