package tokenstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// SQLBackend keeps refresh tokens in a relational database through the
// dialect-specific repositories of a RepositoryManager.
type SQLBackend struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewSQLBackend(db *sql.DB, repos repomanager.RepositoryManager) *SQLBackend {
	return &SQLBackend{db: db, repos: repos}
}

func (b *SQLBackend) Insert(ctx context.Context, rec *models.RefreshToken) error {
	return b.repos.RefreshTokens(b.db).Insert(ctx, rec)
}

func (b *SQLBackend) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	return b.repos.RefreshTokens(b.db).FindByHash(ctx, hash)
}

func (b *SQLBackend) Revoke(ctx context.Context, hash string, now time.Time) (bool, error) {
	return b.repos.RefreshTokens(b.db).Revoke(ctx, hash, now)
}

// Rotate runs the conditional revoke and the insert in one transaction.
// Concurrent rotations of the same hash serialize on the row: the first
// UPDATE wins and the others match zero rows once it commits.
func (b *SQLBackend) Rotate(ctx context.Context, oldHash string, now time.Time, next *models.RefreshToken) error {
	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := b.repos.RefreshTokens(tx)

		ok, err := repo.RevokeActive(ctx, oldHash, now)
		if err != nil {
			return err
		}
		if !ok {
			rec, err := repo.FindByHash(ctx, oldHash)
			if err := classify(rec, err, now); err != nil {
				return err
			}
			// changed between the update and the read: another rotation won
			return common.ErrRefreshTokenRevoked
		}

		return repo.Insert(ctx, next)
	})
}

func (b *SQLBackend) RevokeAllForOwner(ctx context.Context, owner string, now time.Time) (int64, error) {
	return b.repos.RefreshTokens(b.db).RevokeAllForOwner(ctx, owner, now)
}

func (b *SQLBackend) ListActiveForOwner(ctx context.Context, owner string, now time.Time) ([]models.RefreshToken, error) {
	return b.repos.RefreshTokens(b.db).ListActiveForOwner(ctx, owner, now)
}

func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
