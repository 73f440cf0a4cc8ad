// Package apperr defines the business error kinds surfaced to callers.
// Storage and transport failures are wrapped with pkg/errors and propagated
// as-is; these sentinels are matched with errors.Is.
package apperr

import "github.com/pkg/errors"

var (
	// ErrNotFound: the referenced shipment, archive or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: the requested status is not a recognized lifecycle value.
	ErrInvalidState = errors.New("invalid state")

	// ErrEmptyInput: a batch operation was called with nothing to do.
	ErrEmptyInput = errors.New("empty input")

	// ErrTransportFailure: an email send failed; recoverable on the next cycle.
	ErrTransportFailure = errors.New("transport failure")
)

func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

func InvalidStatef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidState, format, args...)
}
