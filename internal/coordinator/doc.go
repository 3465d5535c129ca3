// Package coordinator polls a data source on a fixed interval.
//
// A Coordinator runs one update function at a time on its own goroutine,
// keeps the last result and error, and tells listeners after every update.
// There are no retries: a failed update is recorded and the next tick tries
// again. Failures are logged once when the coordinator starts failing and
// once when it recovers.
package coordinator
