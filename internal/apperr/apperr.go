// Package apperr defines the failure kinds surfaced by the planning poker
// core. Every named error wraps exactly one kind, so adapters only need
// KindOf to pick a response.
package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidInput      Kind = "invalid_input"
	KindDependencyFailure Kind = "dependency_failure"
	KindUnknown           Kind = "unknown"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDependencyFailure = errors.New("dependency failure")
)

// New returns a named error that matches kind under errors.Is.
func New(kind error, msg string) error {
	return fmt.Errorf("%s: %w", msg, kind)
}

// Invalid reports rejected caller input. It is raised before any store call.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// StepError records which step of a (possibly multi-step) operation failed
// against an external dependency.
type StepError struct {
	Op   string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrDependencyFailure, e.Err}
}

func Dependency(op, step string, err error) error {
	return &StepError{Op: op, Step: step, Err: err}
}

// FailedStep returns the step name of the first StepError in err's chain.
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrDependencyFailure):
		return KindDependencyFailure
	default:
		return KindUnknown
	}
}

// RequireID rejects ids that are empty or not UUIDs.
func RequireID(field, id string) error {
	if id == "" {
		return Invalid("%s is required", field)
	}
	if err := uuid.Validate(id); err != nil {
		return Invalid("%s is malformed", field)
	}
	return nil
}

// FromTx passes through errors that already carry a kind and attributes
// anything else to the transaction itself.
func FromTx(op string, err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return Dependency(op, "commit", err)
}
