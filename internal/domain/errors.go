package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound indicates the referenced session is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed indicates the session has already ended. It matches
	// ErrSessionNotFound under errors.Is.
	ErrSessionClosed = fmt.Errorf("%w: session already ended", ErrSessionNotFound)

	// ErrSessionExists indicates a caller-supplied session id is taken.
	ErrSessionExists = errors.New("session already exists")

	// ErrInvalidInput is matched by every *InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDataUnavailable is matched by every *DataUnavailableError.
	ErrDataUnavailable = errors.New("data unavailable")
)

// InvalidInputError reports a request that violates the call contract.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// Invalid builds an InvalidInputError with a formatted reason.
func Invalid(field, format string, args ...any) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DataUnavailableError reports that a collaborator the decision depends on
// (attempt log, question repository) failed or timed out.
type DataUnavailableError struct {
	Source string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s unavailable", e.Source)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

// Unavailable wraps err as a DataUnavailableError for source.
func Unavailable(source string, err error) error {
	return &DataUnavailableError{Source: source, Err: err}
}
