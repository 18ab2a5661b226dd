// Package migrations embeds the goose schema migrations for each supported
// SQL dialect.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Postgres returns the migrations for PostgreSQL as a flat filesystem.
func Postgres() (fs.FS, error) { return fs.Sub(files, "postgres") }

// SQLite returns the migrations for SQLite as a flat filesystem.
func SQLite() (fs.FS, error) { return fs.Sub(files, "sqlite") }
