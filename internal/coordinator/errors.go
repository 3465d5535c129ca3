package coordinator

import "errors"

var (
	// ErrNoUpdateFunc is returned by New when Config.Update is nil.
	ErrNoUpdateFunc = errors.New("coordinator: update function is required")

	// ErrInvalidInterval is returned by New for a non-positive interval.
	ErrInvalidInterval = errors.New("coordinator: interval must be positive")

	// ErrStopped is returned by Refresh after Stop.
	ErrStopped = errors.New("coordinator: stopped")
)
