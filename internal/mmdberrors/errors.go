// Package mmdberrors defines the typed error values surfaced by the decoder
// and tree-walker packages. Errors carry only a message: callers that need
// to classify an error use the public wrapper types in the root package,
// which wrap these via errors.As.
package mmdberrors

import "fmt"

// InvalidDatabaseError is returned when the database contains invalid data
// and cannot be parsed.
type InvalidDatabaseError struct {
	message string
}

// NewOffsetError returns an InvalidDatabaseError for a read that ran past
// the end of the buffer.
func NewOffsetError() InvalidDatabaseError {
	return InvalidDatabaseError{"unexpected end of database"}
}

// NewInvalidDatabaseError formats an InvalidDatabaseError.
func NewInvalidDatabaseError(format string, args ...any) InvalidDatabaseError {
	return InvalidDatabaseError{fmt.Sprintf(format, args...)}
}

func (e InvalidDatabaseError) Error() string {
	return e.message
}

// InvalidUTF8Error is returned when a string or map key in the data section
// is not valid UTF-8. Surfaced distinctly from InvalidDatabaseError so
// callers can tell a structurally sound-but-mistyped database from one that
// is outright corrupt.
type InvalidUTF8Error struct {
	message string
}

// NewInvalidUTF8Error formats an InvalidUTF8Error.
func NewInvalidUTF8Error(format string, args ...any) InvalidUTF8Error {
	return InvalidUTF8Error{fmt.Sprintf(format, args...)}
}

func (e InvalidUTF8Error) Error() string {
	return e.message
}
