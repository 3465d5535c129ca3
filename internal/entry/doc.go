// Package entry persists configuration entries.
//
// An entry is what a completed setup flow leaves behind: the integration
// domain, a display title, an optional unique ID that stops the same device
// being added twice, and a flat JSON data record the integration reads back
// when it is set up.
package entry
