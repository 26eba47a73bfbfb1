// Package db embeds the SQL schema migrations compiled into the stagehand
// binary.
package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the embedded migration files with the .sql files at the
// root of the returned filesystem, which is where the migrate source driver
// looks for them.
func Migrations() (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations")
}
