package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid input data.
	ErrValidation = errors.New("validation error")
	// ErrConflict indicates the operation conflicts with current state.
	ErrConflict = errors.New("conflict")
)
