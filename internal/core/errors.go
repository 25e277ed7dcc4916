package core

import (
	"errors"
	"fmt"
)

var (
	// ErrRunActive is returned when a preview or execute is requested while
	// another run on the same pipeline has not finished.
	ErrRunActive = errors.New("import run already active")

	// ErrNoPreview is returned by Execute when nothing is staged for confirmation.
	ErrNoPreview = errors.New("no staged preview awaiting confirmation")

	// ErrNotConfirmed is returned by Execute without an explicit confirmation.
	ErrNotConfirmed = errors.New("import not confirmed")

	// ErrUnacceptedErrors is returned by Execute when the preview holds error
	// rows, invalid rows are not skipped, and the caller did not accept them.
	ErrUnacceptedErrors = errors.New("preview contains error rows that were not accepted")

	// ErrIllegalTransition is returned for any progress transition outside the
	// documented state machine.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrRowNotFound is returned when a row number does not exist in the preview.
	ErrRowNotFound = errors.New("row not found in preview")
)

// ParseError reports malformed or empty input. It aborts a run before validation.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(reason string, err error) *ParseError {
	return &ParseError{Reason: reason, Err: err}
}

// BackendError reports a failed batch submission. Batches before Batch committed.
type BackendError struct {
	Batch int // 1-based
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("batch %d failed: %v", e.Batch, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// RollbackError reports a rollback the backing store refused or could not perform.
type RollbackError struct {
	BatchID string
	Message string
	Err     error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed for batch %s: %s", e.BatchID, e.Message)
}

func (e *RollbackError) Unwrap() error { return e.Err }
