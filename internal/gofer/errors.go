package gofer

import "errors"

// Aggregator-layer errors. None of these are retried within an invocation:
// the data is unusable or absent and the next scheduled cycle will try again.
var (
	// ErrProcessTimeout is returned when the aggregator subprocess exceeds
	// the configured wall-clock timeout and is killed.
	ErrProcessTimeout = errors.New("aggregator subprocess timed out")

	// ErrProcessExecution is returned when the aggregator binary is missing
	// or exits non-zero.
	ErrProcessExecution = errors.New("aggregator subprocess failed")
)

// Validation-layer errors. A batch is all-or-nothing: any rejected record
// aborts the whole invocation so a partial feed snapshot is never forwarded.
var (
	// ErrMalformedResponse is returned when the aggregator output does not
	// decode against the expected schema. Schema drift is treated as
	// malformed rather than coerced best-effort.
	ErrMalformedResponse = errors.New("malformed aggregator response")

	// ErrInvalidPrice is returned when a record carries a price <= 0.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrStalePrice is returned when a record's timestamp is older than the
	// configured freshness window relative to the invocation time.
	ErrStalePrice = errors.New("stale price")

	// ErrInsufficientSources is returned when fewer than the configured
	// minimum distinct sources contributed to a record.
	ErrInsufficientSources = errors.New("insufficient sources")

	// ErrEmptyFeed is returned when the aggregator ran but produced no
	// records, distinguishing that from a successful non-empty collection.
	ErrEmptyFeed = errors.New("empty feed")
)
