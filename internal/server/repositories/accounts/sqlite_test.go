package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db, err := repomanager.OpenSQLite(ctx, "file:accounts_lifecycle?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	repo := accounts.NewSQLiteRepository(db)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	a := &models.Account{ID: "id1", Email: "alice@example.com", PasswordHash: "h", Roles: []string{"CUSTOMER"}, CreatedAt: created}
	require.NoError(t, repo.Create(ctx, a))
	require.ErrorIs(t, repo.Create(ctx, &models.Account{ID: "id2", Email: "alice@example.com", CreatedAt: created}), common.ErrAccountExists)

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "id1", got.ID)
	assert.Equal(t, []string{"CUSTOMER"}, got.Roles)
	assert.True(t, got.CreatedAt.Equal(created))

	require.NoError(t, repo.SetRoles(ctx, "alice@example.com", []string{"CUSTOMER", "ADMIN"}))
	got, err = repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"CUSTOMER", "ADMIN"}, got.Roles)

	_, err = repo.GetByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.ErrorIs(t, repo.SetRoles(ctx, "ghost@example.com", nil), common.ErrorNotFound)
}
