package storage

import "errors"

// ErrInvalidInput is returned when input validation fails.
var ErrInvalidInput = errors.New("invalid input")
