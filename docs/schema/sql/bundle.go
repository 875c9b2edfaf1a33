// Package sqldocs embeds the DDL of the snapshot state table. Each bucket
// (bakeries, breads, achievements) is one row holding a JSON array.
package sqldocs

import _ "embed"

// SQLite creates the state table for the embedded sqlite store.
//
//go:embed sqlite.sql
var SQLite string

// Postgres creates the state table for the PostgreSQL store.
//
//go:embed postgres.sql
var Postgres string
