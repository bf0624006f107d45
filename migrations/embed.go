// Package migrations embeds SQL migration files for use at runtime.
// Migrations are embedded so they work regardless of working directory.
package migrations

import "embed"

// FS is the embedded migrations filesystem.
// Contains every .up.sql/.down.sql pair in this directory.
//
//go:embed *.sql
var FS embed.FS
