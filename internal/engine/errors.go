package engine

import "errors"

// dependencyUnavailableError signals a runtime that was not compiled in or
// could not be initialized (e.g., llama.cpp without the build tag).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}

// ErrStreamClosed is returned by Step after Close.
var ErrStreamClosed = errors.New("stream closed")
