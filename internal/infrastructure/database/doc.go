// Package database provides SQLite connectivity and schema migrations for
// Gray Logic Integrations.
//
// The store holds configuration entries created by setup flows. Everything
// else the service knows (probe results, meter readings) is runtime state
// and is never written here.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600 after creation
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files live at the root of the supplied fs.FS and are named
// YYYYMMDD_HHMMSS_description.up.sql with an optional matching .down.sql.
// Each one is applied in its own transaction and recorded in
// schema_migrations.
package database
