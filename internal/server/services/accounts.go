package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// MinPasswordLength is enforced by Register.
const MinPasswordLength = 8

// Principal is an account that passed the credential check.
type Principal struct {
	UserID  string
	Subject string
	Roles   []string
}

// CredentialVerifier checks a login attempt. Any mismatch, including an
// unknown email, is reported as common.ErrInvalidCredentials.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*Principal, error)
}

// AccountDirectory keeps accounts with argon2id password hashes. The
// account's email is the token subject. It serves as both the
// CredentialVerifier and the AccountSource of the server.
type AccountDirectory struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time

	// dummyHash is verified against when the email is unknown so both
	// outcomes cost one argon2 derivation.
	dummyHash string
}

func NewAccountDirectory(db *sql.DB, m repomanager.RepositoryManager) (*AccountDirectory, error) {
	dummy, err := cryptox.HashPassword([]byte(uuid.NewString()))
	if err != nil {
		return nil, err
	}
	return &AccountDirectory{db: db, repomanager: m, now: time.Now, dummyHash: dummy}, nil
}

// Register creates an account. Roles are bare names such as "CUSTOMER".
func (d *AccountDirectory) Register(ctx context.Context, email, password string, roles []string) (*models.Account, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email: %v", common.ErrInvalidRequest, err)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password shorter than %d characters", common.ErrInvalidRequest, MinPasswordLength)
	}

	hash, err := cryptox.HashPassword([]byte(password))
	if err != nil {
		return nil, err
	}

	a := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Roles:        bareRoles(roles),
		CreatedAt:    d.now().UTC(),
	}
	if err := d.repomanager.Accounts(d.db).Create(ctx, a); err != nil {
		if errors.Is(err, common.ErrAccountExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating account: %w", err)
	}
	return a, nil
}

func (d *AccountDirectory) VerifyCredentials(ctx context.Context, email, password string) (*Principal, error) {
	a, err := d.repomanager.Accounts(d.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = cryptox.VerifyPassword(d.dummyHash, []byte(password))
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	ok, err := cryptox.VerifyPassword(a.PasswordHash, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	return &Principal{UserID: a.ID, Subject: a.Email, Roles: tokenRoles(a.Roles)}, nil
}

// Principal returns the subject's account with its current roles.
// common.ErrorNotFound means the account no longer exists.
func (d *AccountDirectory) Principal(ctx context.Context, subject string) (*Principal, error) {
	a, err := d.repomanager.Accounts(d.db).GetByEmail(ctx, normalizeEmail(subject))
	if err != nil {
		return nil, err
	}
	return &Principal{UserID: a.ID, Subject: a.Email, Roles: tokenRoles(a.Roles)}, nil
}

// Roles returns the subject's current roles with the ROLE_ prefix.
func (d *AccountDirectory) Roles(ctx context.Context, subject string) ([]string, error) {
	p, err := d.Principal(ctx, subject)
	if err != nil {
		return nil, err
	}
	return p.Roles, nil
}

// SetRoles replaces the roles of the account. Tokens already issued keep
// their roles until they expire; the next refresh picks up the change.
func (d *AccountDirectory) SetRoles(ctx context.Context, email string, roles []string) error {
	return d.repomanager.Accounts(d.db).SetRoles(ctx, normalizeEmail(email), bareRoles(roles))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func tokenRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, common.RolePrefix+r)
	}
	return out
}

func bareRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(r), common.RolePrefix))
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
