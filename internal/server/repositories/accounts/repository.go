// Package accounts stores the login identities that can be issued tokens.
package accounts

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// Create inserts a; common.ErrAccountExists if the email is taken.
	Create(ctx context.Context, a *models.Account) error
	// GetByEmail returns common.ErrorNotFound when no account matches.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	// SetRoles replaces the role assignment of the account with email.
	SetRoles(ctx context.Context, email string, roles []string) error
}

// roles are stored as a comma separated list
func joinRoles(roles []string) string { return strings.Join(roles, ",") }

func splitRoles(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
