package entry

import (
	"encoding/json"
	"time"
)

// Entry is a persisted integration configuration.
type Entry struct {
	ID       string         `json:"id"`
	Domain   string         `json:"domain"`
	Title    string         `json:"title"`
	UniqueID string         `json:"unique_id,omitempty"`
	Data     map[string]any `json:"data"`

	// Version is the schema version of Data, bumped by integrations that
	// change what they store.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// String returns the string value stored under key, or "".
func (e *Entry) String(key string) string {
	if s, ok := e.Data[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns the boolean stored under key, or def when the key is
// missing or not a bool.
func (e *Entry) Bool(key string, def bool) bool {
	if b, ok := e.Data[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the integer stored under key. Values decoded from JSON
// arrive as float64 and are truncated.
func (e *Entry) Int(key string) (int, bool) {
	switch v := e.Data[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}
