package roster

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStudent is returned by Cell for a student not in the roster.
	ErrUnknownStudent = errors.New("unknown student")
	// ErrUnknownDate is returned by Cell for a date that is not a column.
	ErrUnknownDate = errors.New("unknown date")
	// ErrEmptyTable is returned when the input has no header row at all.
	ErrEmptyTable = errors.New("attendance table is empty")
	// ErrUnsupportedFormat is returned by ParseFile for unknown extensions.
	ErrUnsupportedFormat = errors.New("unsupported roster file format")
)

// SchemaError reports a structural problem with the table header or layout.
type SchemaError struct {
	Column  string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return "schema error: " + e.Message
	}
	return fmt.Sprintf("schema error in column '%s': %s", e.Column, e.Message)
}

// ValueCheckError reports a cell or student name that failed validation.
// Row is the 1-based data row (the header is row 0).
type ValueCheckError struct {
	Column  string
	Row     int
	Value   string
	Message string
}

func (e *ValueCheckError) Error() string {
	return fmt.Sprintf("invalid value %q in column '%s' (row %d): %s", e.Value, e.Column, e.Row, e.Message)
}
