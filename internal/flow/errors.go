package flow

import "errors"

var (
	// ErrUnknownDomain is returned when no handler is registered for a domain.
	ErrUnknownDomain = errors.New("flow: unknown domain")

	// ErrFlowNotFound is returned for an unknown, finished or expired flow.
	ErrFlowNotFound = errors.New("flow: not found")

	// ErrInvalidResult is returned when a handler produces a result the
	// manager cannot act on.
	ErrInvalidResult = errors.New("flow: invalid step result")

	// ErrDomainRegistered is returned when a domain is registered twice.
	ErrDomainRegistered = errors.New("flow: domain already registered")
)
