package shelf

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by collection operations. Callers match them
// with errors.Is.
var (
	// ErrNotFound is returned when an operation targets a record or file
	// that does not exist on disk.
	ErrNotFound = errors.New("shelf: not found")

	// ErrAlreadyExists is returned by Add when the derived or requested
	// filename is already occupied.
	ErrAlreadyExists = errors.New("shelf: already exists")

	// ErrConfiguration is returned when a collection cannot be opened or
	// used as configured: unknown format, ambiguous inference, missing
	// body field, and similar setup mistakes.
	ErrConfiguration = errors.New("shelf: configuration error")

	// ErrInvalidArgument is returned when an operation receives an
	// argument outside its domain, such as a negative window size.
	ErrInvalidArgument = errors.New("shelf: invalid argument")
)

// DecodeError reports that a file on disk could not be turned into a
// record: unreadable syntax, a structural mismatch, or a failed
// validation hook. Path is the offending file.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("shelf: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// decodeErr wraps err as a *DecodeError for path, unless it already is one.
func decodeErr(path string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Path: path, Err: err}
}
