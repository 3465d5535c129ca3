package database

import "errors"

var (
	// ErrEmptyPath is returned by Open when no database path is configured.
	ErrEmptyPath = errors.New("database: path is empty")

	// ErrMigrationNotFound means an applied version has no matching file.
	ErrMigrationNotFound = errors.New("database: migration not found")

	// ErrNoDownMigration means the latest migration cannot be rolled back.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
