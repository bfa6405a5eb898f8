package types

import (
	"errors"
	"fmt"
)

// ErrStaleGeneration is returned by a store asked to activate a cluster generation
// older than the one already active.
var ErrStaleGeneration = errors.New("a newer cluster generation is already active")

// ValidationError marks input that was rejected before any computation ran.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ComputationError wraps an unexpected numeric failure inside one pipeline stage.
// The pipeline logs it and keeps the results produced so far.
type ComputationError struct {
	Stage string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed in %s: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
