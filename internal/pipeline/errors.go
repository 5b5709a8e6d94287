package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoData marks a run where no usable documents survived cleaning.
var ErrNoData = errors.New("no usable documents found")

// ErrInvalidCompany marks a company name that failed validation.
var ErrInvalidCompany = errors.New("invalid company name")

// StageError wraps a stage-fatal or dependency-fatal failure with the
// stage it occurred in. Per-item failures are never wrapped in a
// StageError; they are absorbed into run counts.
type StageError struct {
	Stage Stage
	Err   error
	// Retryable marks dependency failures (provider unreachable) where
	// the caller may retry the whole research request.
	Retryable bool
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

func retryableErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err, Retryable: true}
}
