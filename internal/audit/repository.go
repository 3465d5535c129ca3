// Package audit records changes made to configuration entries: which
// entry, which action, who asked for it and through which surface.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action names what happened to an entry.
type Action string

const (
	ActionEntryCreated   Action = "entry.created"
	ActionEntryRemoved   Action = "entry.removed"
	ActionEntryRefreshed Action = "entry.refreshed"
)

// Source names the surface a change came through.
type Source string

const (
	SourceAPI  Source = "api"
	SourceCLI  Source = "cli"
	SourceMQTT Source = "mqtt"
)

// Record is one audit trail row.
type Record struct {
	ID        string         `json:"id"`
	Action    Action         `json:"action"`
	Domain    string         `json:"domain"`
	EntryID   string         `json:"entry_id,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Source    Source         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// timeFormat is fixed width so created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Filter selects records. Empty fields match everything.
type Filter struct {
	Action  Action
	Domain  string
	EntryID string
	Limit   int
	Offset  int
}

// Page is one page of List results, newest first.
type Page struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Recorder stores audit records.
type Recorder interface {
	Record(ctx context.Context, rec *Record) error
}

// SQLiteRepository stores records in the entry_audit table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts rec, filling in its ID and CreatedAt when empty.
func (r *SQLiteRepository) Record(ctx context.Context, rec *Record) error {
	if rec.Action == "" || rec.Domain == "" || rec.Source == "" {
		return fmt.Errorf("recording audit: action, domain and source are required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	var details *string
	if len(rec.Details) > 0 {
		b, err := json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		details = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entry_audit (id, action, domain, entry_id, subject, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Action), rec.Domain,
		nullable(rec.EntryID), nullable(rec.Subject),
		string(rec.Source), details,
		rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}

// nullable maps "" to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns the records matching f, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*Page, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var (
		conds []string
		args  []any
	)
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(f.Action))
	}
	if f.Domain != "" {
		conds = append(conds, "domain = ?")
		args = append(args, f.Domain)
	}
	if f.EntryID != "" {
		conds = append(conds, "entry_id = ?")
		args = append(args, f.EntryID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	page := &Page{Records: []Record{}, Limit: f.Limit, Offset: f.Offset}
	//nolint:gosec // where holds only fixed conditions with ? placeholders
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entry_audit"+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("counting audit records: %w", err)
	}

	//nolint:gosec // where holds only fixed conditions with ? placeholders
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, action, domain, entry_id, subject, source, details, created_at FROM entry_audit"+
			where+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		page.Records = append(page.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}
	return page, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec                       Record
		action, source, createdAt string
		entryID, subject, details sql.NullString
	)
	if err := rows.Scan(&rec.ID, &action, &rec.Domain, &entryID, &subject, &source, &details, &createdAt); err != nil {
		return Record{}, fmt.Errorf("scanning audit record: %w", err)
	}
	rec.Action, rec.Source = Action(action), Source(source)
	rec.EntryID, rec.Subject = entryID.String, subject.String
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &rec.Details); err != nil {
			return Record{}, fmt.Errorf("decoding audit details of %s: %w", rec.ID, err)
		}
	}
	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
	}
	rec.CreatedAt = t
	return rec, nil
}
