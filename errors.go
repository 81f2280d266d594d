package mmdbquery

import (
	"errors"
	"fmt"

	"github.com/geoipcore/mmdbquery/internal/buffer"
	"github.com/geoipcore/mmdbquery/internal/mmdberrors"
)

// InvalidArgumentError is returned for ill-formed caller input: an unknown
// open mode, a malformed address string, or an IPv6 address looked up
// against an IPv4-only database.
type InvalidArgumentError struct {
	message string
}

func newInvalidArgumentError(format string, args ...any) error {
	return InvalidArgumentError{message: fmt.Sprintf(format, args...)}
}

func (e InvalidArgumentError) Error() string { return e.message }

// FileNotFoundError wraps the underlying os error from a failed Open when
// the path does not exist or cannot be read.
type FileNotFoundError struct {
	path string
	err  error
}

func newFileNotFoundError(path string, err error) error {
	return FileNotFoundError{path: path, err: err}
}

func (e FileNotFoundError) Error() string {
	return fmt.Sprintf("opening %q: %v", e.path, e.err)
}

func (e FileNotFoundError) Unwrap() error { return e.err }

// InvalidDatabaseError indicates the MMDB file is structurally corrupt: a
// missing sentinel, a truncated read, an unknown type tag, a fixed-width
// size mismatch, a non-string map key, or a data pointer past the end of
// the buffer.
type InvalidDatabaseError struct {
	err error
}

func (e InvalidDatabaseError) Error() string { return e.err.Error() }
func (e InvalidDatabaseError) Unwrap() error { return e.err }

// InvalidUTF8Error indicates a string or map key in the data section was
// not valid UTF-8.
type InvalidUTF8Error struct {
	err error
}

func (e InvalidUTF8Error) Error() string { return e.err.Error() }
func (e InvalidUTF8Error) Unwrap() error { return e.err }

// ClosedDatabaseError is returned by any Reader method (other than Close
// itself) called after Close.
type ClosedDatabaseError struct{}

func (ClosedDatabaseError) Error() string { return "mmdbquery: database has been closed" }

var errClosed error = ClosedDatabaseError{}

// translateDecodeErrorMsg builds an InvalidDatabaseError from a literal
// message, for corruption detected in the root package itself rather than
// surfaced from internal/decoder.
func translateDecodeErrorMsg(format string, args ...any) error {
	return InvalidDatabaseError{err: mmdberrors.NewInvalidDatabaseError(format, args...)}
}

// translateDecodeError classifies an error surfaced from the internal
// decoder/buffer packages into one of the public error kinds above. Errors
// that are already one of the public kinds pass through unchanged.
func translateDecodeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, buffer.ErrClosed) {
		return errClosed
	}
	var invalidDB mmdberrors.InvalidDatabaseError
	if errors.As(err, &invalidDB) {
		return InvalidDatabaseError{err: err}
	}
	var invalidUTF8 mmdberrors.InvalidUTF8Error
	if errors.As(err, &invalidUTF8) {
		return InvalidUTF8Error{err: err}
	}
	return err
}
