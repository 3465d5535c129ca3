package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for entry persistence operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context) ([]Entry, error)
	ListByDomain(ctx context.Context, domain string) ([]Entry, error)
	FindByUniqueID(ctx context.Context, domain, uniqueID string) (*Entry, error)
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed entry repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const selectColumns = `SELECT id, domain, title, unique_id, data, version, created_at, updated_at
	FROM config_entries`

// Create inserts e, filling in ID, Version and timestamps when unset.
// Returns ErrAlreadyConfigured if (domain, unique_id) is taken.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.Domain == "" {
		return ErrDomainRequired
	}
	if e.Title == "" {
		return ErrTitleRequired
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Version == 0 {
		e.Version = 1
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	now := r.now().UTC().Truncate(time.Second)
	e.CreatedAt, e.UpdatedAt = now, now

	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encoding entry data: %w", err)
	}

	const query = `INSERT INTO config_entries
		(id, domain, title, unique_id, data, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.Domain, e.Title, nullStr(e.UniqueID), string(data), e.Version,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", ErrAlreadyConfigured, e.Domain, e.UniqueID)
		}
		return fmt.Errorf("inserting entry %s: %w", e.ID, err)
	}
	return nil
}

// Get returns a single entry by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanEntry(row)
}

// FindByUniqueID returns the entry of domain with the given unique ID.
func (r *SQLiteRepository) FindByUniqueID(ctx context.Context, domain, uniqueID string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE domain = ? AND unique_id = ?`, domain, uniqueID)
	return scanEntry(row)
}

// List returns every entry ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	return r.query(ctx, selectColumns+` ORDER BY created_at, id`)
}

// ListByDomain returns the entries of one integration.
func (r *SQLiteRepository) ListByDomain(ctx context.Context, domain string) ([]Entry, error) {
	return r.query(ctx, selectColumns+` WHERE domain = ? ORDER BY created_at, id`, domain)
}

// Delete removes an entry by ID.
// Returns ErrEntryNotFound if the entry does not exist.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM config_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entry rows: %w", err)
	}
	return entries, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var uniqueID sql.NullString
	var data, createdAt, updatedAt string

	err := s.Scan(&e.ID, &e.Domain, &e.Title, &uniqueID, &data, &e.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("scanning entry: %w", err)
	}

	e.UniqueID = uniqueID.String
	if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
		return nil, fmt.Errorf("decoding data of entry %s: %w", e.ID, err)
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// nullStr stores an empty unique ID as NULL so the partial index skips it.
func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
