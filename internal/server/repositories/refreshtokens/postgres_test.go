package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var (
	now     = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	columns = []string{"id", "token_hash", "owner_subject", "revoked", "created_at", "expires_at", "revoked_at"}
)

func TestInsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\s*\(id,\s*token_hash,\s*owner_subject,\s*revoked,\s*created_at,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*FALSE,\s*\$4,\s*\$5\)\s*$`

	rec := &models.RefreshToken{ID: "id1", Hash: "h1", OwnerSubject: "alice", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	mock.ExpectExec(q).
		WithArgs("id1", "h1", "alice", now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WillReturnError(errors.New("db down"))

	err := repo.Insert(context.Background(), &models.RefreshToken{})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByHash_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*token_hash,.*FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1$`

	revokedAt := now.Add(time.Minute)
	mock.ExpectQuery(q).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id1", "h1", "alice", true, now, now.Add(time.Hour), revokedAt))

	got, err := repo.FindByHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerSubject)
	assert.True(t, got.Revoked)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, got.RevokedAt.Equal(revokedAt))
}

func TestFindByHash_NullRevokedAt(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+refresh_tokens`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id1", "h1", "alice", false, now, now.Add(time.Hour), nil))

	got, err := repo.FindByHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.False(t, got.Revoked)
	assert.Nil(t, got.RevokedAt)
}

func TestFindByHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+refresh_tokens`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindByHash_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+refresh_tokens`).
		WithArgs("h1").
		WillReturnError(errors.New("db err"))

	_, err := repo.FindByHash(context.Background(), "h1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestRevoke_ConditionalUpdate(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"transitioned", 1, true},
		{"already revoked", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			q := `(?s)UPDATE\s+refresh_tokens\s+SET\s+revoked\s*=\s*TRUE,\s*revoked_at\s*=\s*\$2\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+revoked\s*=\s*FALSE\s*$`
			mock.ExpectExec(q).
				WithArgs("h1", now).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.Revoke(context.Background(), "h1", now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRevokeActive_RequiresUnexpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)WHERE\s+token_hash\s*=\s*\$1\s+AND\s+revoked\s*=\s*FALSE\s+AND\s+expires_at\s*>\s*\$2`
	mock.ExpectExec(q).
		WithArgs("h1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.RevokeActive(context.Background(), "h1", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRevoke_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_tokens`).
		WillReturnError(errors.New("db err"))

	_, err := repo.Revoke(context.Background(), "h1", now)
	require.ErrorContains(t, err, "db error")
}

func TestRevokeAllForOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)WHERE\s+owner_subject\s*=\s*\$1\s+AND\s+revoked\s*=\s*FALSE`).
		WithArgs("alice", now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForOwner(context.Background(), "alice", now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestListActiveForOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE\s+owner_subject\s*=\s*\$1\s+AND\s+revoked\s*=\s*FALSE\s+AND\s+expires_at\s*>\s*\$2\s+ORDER\s+BY\s+created_at\s+DESC`).
		WithArgs("alice", now).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id2", "h2", "alice", false, now, now.Add(2*time.Hour), nil).
			AddRow("id1", "h1", "alice", false, now.Add(-time.Hour), now.Add(time.Hour), nil))

	got, err := repo.ListActiveForOwner(context.Background(), "alice", now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "h2", got[0].Hash)
	assert.Equal(t, "h1", got[1].Hash)
}

func TestListActiveForOwner_RowError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+refresh_tokens`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id1", "h1", "alice", false, now, now, nil).
			RowError(0, errors.New("broken row")))

	_, err := repo.ListActiveForOwner(context.Background(), "alice", now)
	require.ErrorContains(t, err, "broken row")
}
