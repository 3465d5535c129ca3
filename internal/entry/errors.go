package entry

import "errors"

var (
	// ErrEntryNotFound is returned when an entry ID does not exist.
	ErrEntryNotFound = errors.New("entry: not found")

	// ErrAlreadyConfigured is returned when an entry with the same domain
	// and unique ID already exists.
	ErrAlreadyConfigured = errors.New("entry: already configured")

	// ErrDomainRequired is returned when an entry has no domain.
	ErrDomainRequired = errors.New("entry: domain is required")

	// ErrTitleRequired is returned when an entry has no title.
	ErrTitleRequired = errors.New("entry: title is required")
)
