package integrations

import "errors"

var (
	// ErrUnknownDomain is returned for an entry whose integration is not registered.
	ErrUnknownDomain = errors.New("integrations: unknown domain")

	// ErrAlreadyLoaded is returned when setting up an entry that is running.
	ErrAlreadyLoaded = errors.New("integrations: entry already loaded")

	// ErrNotLoaded is returned for an entry that has no running runtime.
	ErrNotLoaded = errors.New("integrations: entry not loaded")

	// ErrRefreshUnsupported is returned when a runtime cannot refresh on demand.
	ErrRefreshUnsupported = errors.New("integrations: refresh not supported")
)
