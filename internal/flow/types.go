package flow

import (
	"context"
	"time"
)

// ResultType tags what a step produced.
type ResultType string

const (
	ResultForm        ResultType = "form"
	ResultCreateEntry ResultType = "create_entry"
	ResultAbort       ResultType = "abort"
)

// Error keys and codes shared by every integration.
const (
	// ErrorBase keys an error that is not tied to a single field.
	ErrorBase = "base"

	CodeCannotConnect = "cannot_connect"
	CodeRequired      = "required"
	CodeInvalidType   = "invalid_type"
	CodeInvalidOption = "invalid_option"

	ReasonAlreadyConfigured = "already_configured"
)

// FieldType is the input kind of a form field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldBool   FieldType = "bool"
	FieldSelect FieldType = "select"
)

// Option is one choice of a select field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field describes one input of a form.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Default  any       `json:"default,omitempty"`
	Options  []Option  `json:"options,omitempty"`
}

// Result is what a step produced.
type Result struct {
	Type   ResultType `json:"type"`
	FlowID string     `json:"flow_id,omitempty"`
	Domain string     `json:"domain,omitempty"`

	// Form
	StepID string            `json:"step_id,omitempty"`
	Schema []Field           `json:"schema,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`

	// Create entry
	Title    string         `json:"title,omitempty"`
	UniqueID string         `json:"unique_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	EntryID  string         `json:"entry_id,omitempty"`

	// Abort
	Reason string `json:"reason,omitempty"`
}

// ShowForm returns a form result. A nil or empty errs means no errors.
func ShowForm(stepID string, schema []Field, errs map[string]string) Result {
	if len(errs) == 0 {
		errs = nil
	}
	return Result{Type: ResultForm, StepID: stepID, Schema: schema, Errors: errs}
}

// CreateEntry returns a result that finishes the flow with a new entry.
func CreateEntry(title, uniqueID string, data map[string]any) Result {
	return Result{Type: ResultCreateEntry, Title: title, UniqueID: uniqueID, Data: data}
}

// Abort returns a result that ends the flow without an entry.
func Abort(reason string) Result {
	return Result{Type: ResultAbort, Reason: reason}
}

// Handler runs the steps of one wizard instance. The manager never calls
// Step concurrently on the same handler. A nil input means the step is
// being entered and should show its form.
type Handler interface {
	Step(ctx context.Context, stepID string, input map[string]any) (Result, error)
}

// Factory creates a fresh Handler for a new flow.
type Factory func() Handler

// StepUser is the step every flow starts in.
const StepUser = "user"

// Info describes an in-progress flow.
type Info struct {
	ID        string    `json:"flow_id"`
	Domain    string    `json:"domain"`
	StepID    string    `json:"step_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
