// Package migrations embeds the SQL schema of the integrations store.
package migrations

import "embed"

// FS holds every migration file. Pass it to database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
