package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// SQLiteRepository implements Repository for the embedded SQLite store.
// Timestamps are stored as unix milliseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const liteColumns = `id, token_hash, owner_subject, revoked, created_at, expires_at, revoked_at`

func (r *SQLiteRepository) Insert(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, token_hash, owner_subject, revoked, created_at, expires_at)
		VALUES (?1, ?2, ?3, 0, ?4, ?5)
	`
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.Hash, t.OwnerSubject, t.CreatedAt.UnixMilli(), t.ExpiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `SELECT ` + liteColumns + ` FROM refresh_tokens WHERE token_hash = ?1`

	t, err := scanSQLite(r.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Revoke(ctx context.Context, hash string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = 1, revoked_at = ?2
		WHERE token_hash = ?1 AND revoked = 0
	`
	return r.execOne(ctx, query, hash, now.UnixMilli())
}

func (r *SQLiteRepository) RevokeActive(ctx context.Context, hash string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = 1, revoked_at = ?2
		WHERE token_hash = ?1 AND revoked = 0 AND expires_at > ?2
	`
	return r.execOne(ctx, query, hash, now.UnixMilli())
}

func (r *SQLiteRepository) RevokeAllForOwner(ctx context.Context, owner string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = 1, revoked_at = ?2
		WHERE owner_subject = ?1 AND revoked = 0
	`
	res, err := r.db.ExecContext(ctx, query, owner, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.Affected(res)
}

func (r *SQLiteRepository) ListActiveForOwner(ctx context.Context, owner string, now time.Time) ([]models.RefreshToken, error) {
	query := `SELECT ` + liteColumns + ` FROM refresh_tokens
		WHERE owner_subject = ?1 AND revoked = 0 AND expires_at > ?2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, owner, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.RefreshToken
	for rows.Next() {
		t, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) execOne(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := dbx.Affected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanSQLite(s scanner) (*models.RefreshToken, error) {
	var (
		t                models.RefreshToken
		revoked          int64
		created, expires int64
		revokedAt        sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.Hash, &t.OwnerSubject, &revoked, &created, &expires, &revokedAt); err != nil {
		return nil, err
	}
	t.Revoked = revoked != 0
	t.CreatedAt = time.UnixMilli(created).UTC()
	t.ExpiresAt = time.UnixMilli(expires).UTC()
	if revokedAt.Valid {
		ts := time.UnixMilli(revokedAt.Int64).UTC()
		t.RevokedAt = &ts
	}
	return &t, nil
}
