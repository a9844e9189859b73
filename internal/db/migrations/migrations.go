// Package migrations embeds the goose SQL migrations of the relational
// storage backends, one directory per dialect.
package migrations

import "embed"

// Postgres holds the migrations applied by the PostgreSQL backend, under "postgres".
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the migrations applied by the SQLite backend, under "sqlite".
//
//go:embed sqlite/*.sql
var SQLite embed.FS
