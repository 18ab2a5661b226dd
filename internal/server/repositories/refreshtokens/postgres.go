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

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const pgColumns = `id, token_hash, owner_subject, revoked, created_at, expires_at, revoked_at`

func (r *PostgresRepository) Insert(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, token_hash, owner_subject, revoked, created_at, expires_at)
		VALUES ($1, $2, $3, FALSE, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.Hash, t.OwnerSubject, t.CreatedAt, t.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `SELECT ` + pgColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	t, err := scanPostgres(r.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, hash string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE token_hash = $1 AND revoked = FALSE
	`
	return r.execOne(ctx, query, hash, now)
}

func (r *PostgresRepository) RevokeActive(ctx context.Context, hash string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2
	`
	return r.execOne(ctx, query, hash, now)
}

func (r *PostgresRepository) RevokeAllForOwner(ctx context.Context, owner string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE owner_subject = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, owner, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.Affected(res)
}

func (r *PostgresRepository) ListActiveForOwner(ctx context.Context, owner string, now time.Time) ([]models.RefreshToken, error) {
	query := `SELECT ` + pgColumns + ` FROM refresh_tokens
		WHERE owner_subject = $1 AND revoked = FALSE AND expires_at > $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, owner, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.RefreshToken
	for rows.Next() {
		t, err := scanPostgres(rows)
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

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) (bool, error) {
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

type scanner interface {
	Scan(dest ...any) error
}

func scanPostgres(s scanner) (*models.RefreshToken, error) {
	var (
		t         models.RefreshToken
		revokedAt sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.Hash, &t.OwnerSubject, &t.Revoked, &t.CreatedAt, &t.ExpiresAt, &revokedAt); err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		ts := revokedAt.Time
		t.RevokedAt = &ts
	}
	return &t, nil
}
