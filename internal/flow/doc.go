// Package flow runs setup wizards.
//
// A wizard is a Handler that is asked for one step at a time. Each step
// either shows a form, creates a configuration entry, or aborts. The
// Manager keeps in-progress flows in memory, serialises the steps of each
// flow, validates submitted input against the form that was shown, and
// persists the entry when a flow finishes.
//
// Error codes attached to a form are symbolic strings keyed by field
// name. The key "base" applies to the form as a whole.
package flow
