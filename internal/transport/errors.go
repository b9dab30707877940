package transport

import "errors"

// Transport-layer errors.
var (
	// ErrRejected is returned when the validator explicitly refuses a
	// payload (malformed or duplicate). Rejections are terminal for the
	// invocation: retrying a rejected payload cannot succeed.
	ErrRejected = errors.New("payload rejected by validator")

	// ErrAckTimeout is returned when the validator does not acknowledge a
	// delivery within the ack timeout. Treated as transient and retried.
	ErrAckTimeout = errors.New("timed out waiting for validator ack")
)
