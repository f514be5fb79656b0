package normalization

import (
	"errors"
	"fmt"
)

// Normalization errors.
var (
	// ErrUnknownStrategy is returned when an endpoint names a strategy tag
	// that has no implementation.
	ErrUnknownStrategy = errors.New("unknown normalization strategy")

	// ErrSchemaMismatch is returned when a payload does not have the nested
	// shape its strategy expects.
	ErrSchemaMismatch = errors.New("payload schema mismatch")

	// ErrMissingColumn is returned when a registered output column is absent
	// from a flattened record.
	ErrMissingColumn = errors.New("missing column")
)

// SchemaMismatchError describes where a payload diverged from the expected shape.
type SchemaMismatchError struct {
	Endpoint string
	Path     string // dotted location inside the payload, e.g. "data[3].energy_blocks"
	Expected string
	Got      string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: expected %s, got %s", e.Endpoint, e.Path, e.Expected, e.Got)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// MissingColumnError names the column and the flattened record that lacked it.
type MissingColumnError struct {
	Endpoint string
	Column   string
	Record   int
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: record %d has no column %q", e.Endpoint, e.Record, e.Column)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }
