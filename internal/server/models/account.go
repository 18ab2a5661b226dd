// Package models holds the records persisted by the repositories.
package models

import "time"

// Account is a login identity known to the account directory.
// Roles hold bare role names ("ADMIN", "STAFF"); the ROLE_ prefix is added
// when they are embedded into tokens.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}
