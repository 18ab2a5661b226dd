package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// openTokens returns a one-connection in-memory database with a cut-down
// refresh token table.
func openTokens(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE tokens (token_hash TEXT PRIMARY KEY, revoked INTEGER NOT NULL DEFAULT 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tokens(token_hash) VALUES ('old')`)
	require.NoError(t, err)
	return db
}

func tokenState(t *testing.T, db *sql.DB) (count int, revoked int) {
	t.Helper()
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(revoked), 0) FROM tokens`).Scan(&count, &revoked))
	return count, revoked
}

// rotate flips 'old' and inserts next, the same shape the token store uses.
func rotate(next string, after func() error) func(ctx context.Context, tx DBTX) error {
	return func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, `UPDATE tokens SET revoked = 1 WHERE token_hash = 'old' AND revoked = 0`)
		if err != nil {
			return err
		}
		if n, err := Affected(res); err != nil || n != 1 {
			return errors.New("lost the race")
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tokens(token_hash) VALUES (?)`, next); err != nil {
			return err
		}
		if after != nil {
			return after()
		}
		return nil
	}
}

func TestWithTx(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		fn          func(ctx context.Context, tx DBTX) error
		wantErr     error
		wantCount   int
		wantRevoked int
	}{
		{name: "commit", fn: rotate("new", nil), wantCount: 2, wantRevoked: 1},
		{name: "fn error rolls back", fn: rotate("new", func() error { return boom }), wantErr: boom, wantCount: 1},
		{name: "duplicate insert rolls back the revoke", fn: rotate("old", nil), wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTokens(t)

			err := WithTx(context.Background(), db, nil, tt.fn)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantCount == 1:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}

			count, revoked := tokenState(t, db)
			assert.Equal(t, tt.wantCount, count)
			assert.Equal(t, tt.wantRevoked, revoked)
		})
	}
}

func TestWithTx_SecondRotationLoses(t *testing.T) {
	db := openTokens(t)
	ctx := context.Background()

	require.NoError(t, WithTx(ctx, db, nil, rotate("a", nil)))
	require.Error(t, WithTx(ctx, db, nil, rotate("b", nil)))

	count, revoked := tokenState(t, db)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, revoked)
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openTokens(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		count, revoked := tokenState(t, db)
		assert.Equal(t, 1, count)
		assert.Zero(t, revoked, "must rollback on panic")
	}()

	_ = WithTx(context.Background(), db, nil, rotate("new", func() error { panic("kaput") }))
}

func TestWithTx_BeginError(t *testing.T) {
	db := openTokens(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
}
