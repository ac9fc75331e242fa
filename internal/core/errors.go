package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrInternal   = errors.New("internal error")
)

// LoadError reports a reference source that could not be read. Fatal errors
// leave the service unable to answer device queries; non-fatal ones mean the
// source was replaced by an empty reference.
type LoadError struct {
	Source string
	Fatal  bool
	Err    error
}

func (e *LoadError) Error() string {
	kind := "degraded"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("%s load of %s: %v", kind, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NotFoundf returns an error matching ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Invalidf returns an error matching ErrValidation.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Internal marks err as an unexpected failure of op. Errors that already
// belong to the taxonomy (not found, validation, internal, load errors) are
// returned unchanged.
func Internal(op string, err error) error {
	var le *LoadError
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInternal) || errors.As(err, &le) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// IsFatalLoad reports whether err carries a fatal LoadError.
func IsFatalLoad(err error) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Fatal
}
