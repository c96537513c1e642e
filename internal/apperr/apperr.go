// Package apperr defines the error kinds the curation services surface to
// callers. Handlers map them to HTTP statuses with errors.Is.
package apperr

import (
	"errors"

	"github.com/rotisserie/eris"
)

// ErrNotFound marks lookups for unknown taxonomy keys or rule IDs.
var ErrNotFound = errors.New("not found")

// ErrBadRequest marks malformed or contradictory caller input, including
// illegal status transitions.
var ErrBadRequest = errors.New("bad request")

// NotFoundf returns an ErrNotFound wrapped with a caller-facing message.
func NotFoundf(format string, args ...any) error {
	return eris.Wrapf(ErrNotFound, format, args...)
}

// BadRequestf returns an ErrBadRequest wrapped with a caller-facing message.
func BadRequestf(format string, args ...any) error {
	return eris.Wrapf(ErrBadRequest, format, args...)
}
