package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"llmworker/internal/engine"
)

// ValidationError lists schema violations found in a job's input.
type ValidationError struct{ Problems []string }

func (e *ValidationError) Error() string { return strings.Join(e.Problems, "; ") }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TypeMismatchError signals a field whose value has the wrong shape.
type TypeMismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s must be a %s, received %s", e.Field, e.Want, e.Got)
}

// IsTypeMismatch reports whether err is a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var t TypeMismatchError
	return errors.As(err, &t)
}

// EngineError wraps a failure raised by the engine during a job.
type EngineError struct {
	Op  string // encode, begin or step
	Err error
}

func (e *EngineError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *EngineError) Unwrap() error { return e.Err }

// IsEngine reports whether err came from the engine.
func IsEngine(err error) bool {
	var e *EngineError
	return errors.As(err, &e)
}

// tooBusyError signals that the generation slot could not be acquired in time.
type tooBusyError struct{ wait string }

func (e tooBusyError) Error() string { return "too busy: generation slot not free after " + e.wait }

// IsTooBusy reports whether err indicates admission backpressure.
func IsTooBusy(err error) bool {
	var t tooBusyError
	return errors.As(err, &t)
}

// errConsumed is returned when a generation sequence is iterated twice.
var errConsumed = errors.New("generation already consumed")

// Kind classifies err for the "<Kind>: <message>" error record.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "ValidationError"
	case IsTypeMismatch(err):
		return "TypeMismatch"
	case IsTooBusy(err):
		return "TooBusy"
	case engine.IsDependencyUnavailable(err):
		return "DependencyUnavailable"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "DeadlineExceeded"
	case IsEngine(err):
		return "EngineError"
	default:
		return "Error"
	}
}

// errorText renders the terminal error record text. The engine op prefix
// is kept out of the caller-facing message.
func errorText(err error) string {
	msg := err.Error()
	var ee *EngineError
	if errors.As(err, &ee) {
		msg = ee.Err.Error()
	}
	kind := Kind(err)
	if msg == "" {
		return kind
	}
	return kind + ": " + msg
}
