// Package refreshtokens declares the server-side repository contract for
// refresh-token records.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists refresh-token records keyed by the hash of their
// secret. Records are never deleted; revocation is a one-way flag.
type Repository interface {
	// Insert stores a new, unrevoked record.
	Insert(ctx context.Context, t *models.RefreshToken) error

	// FindByHash returns the record for hash, or common.ErrorNotFound.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)

	// Revoke flips revoked false -> true regardless of expiry. It reports
	// whether this call performed the transition.
	Revoke(ctx context.Context, hash string, now time.Time) (bool, error)

	// RevokeActive flips revoked false -> true only if the record has not
	// expired at now. It is the compare-and-set behind rotation: of several
	// concurrent callers exactly one sees true.
	RevokeActive(ctx context.Context, hash string, now time.Time) (bool, error)

	// RevokeAllForOwner revokes every unrevoked record of owner and returns
	// how many were flipped.
	RevokeAllForOwner(ctx context.Context, owner string, now time.Time) (int64, error)

	// ListActiveForOwner returns unrevoked, unexpired records, newest first.
	ListActiveForOwner(ctx context.Context, owner string, now time.Time) ([]models.RefreshToken, error)
}
