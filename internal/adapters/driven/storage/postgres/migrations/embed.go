// Package migrations embeds the PostgreSQL schema migrations.
package migrations

import "embed"

// FS holds the versioned migration files in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
