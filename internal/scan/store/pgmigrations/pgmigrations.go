// Package pgmigrations embeds the SQL migrations for the PostgreSQL scan store.
package pgmigrations

import "embed"

// FS holds the migration files, consumed by the postgres platform package.
//
//go:embed *.sql
var FS embed.FS
