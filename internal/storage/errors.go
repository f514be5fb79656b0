package storage

import "errors"

// Storage errors shared by every sink.
var (
	// ErrNotFound is returned when a requested period, series or manifest
	// record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrColumnMismatch is returned when rows are appended to a period whose
	// stored column order differs from the table being written.
	ErrColumnMismatch = errors.New("column order does not match stored period")
)
