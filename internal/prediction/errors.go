package prediction

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the caller's deadline expires or the request is
// canceled before a result is ready.
var ErrTimeout = errors.New("prediction timed out")

// ValidationError rejects a request before any work is done.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid prediction input: " + e.Reason
	}
	return fmt.Sprintf("invalid prediction input: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// orchestrationError is a failure inside a pipeline step. It never reaches
// callers: the fallback path absorbs it.
type orchestrationError struct {
	State State
	Err   error
}

func (e *orchestrationError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *orchestrationError) Unwrap() error { return e.Err }
