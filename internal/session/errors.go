package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrentWrite is returned when the write queue is full.
	ErrConcurrentWrite = errors.New("edit session: too many writes in flight")
	// ErrClosed is returned by a coordinator that has been torn down.
	ErrClosed = errors.New("edit session: coordinator closed")
)

// LoadError wraps a failed session fetch.
type LoadError struct {
	JobID string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load edit session for job %s: %v", e.JobID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError wraps a failed full-replace write. The in-memory state has
// already been rolled back when it is returned.
type SaveError struct {
	JobID  string
	Reason Reason
	Err    error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save edit session for job %s (%s): %v", e.JobID, e.Reason, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

type ActionNotFoundError struct {
	ID string
}

func (e *ActionNotFoundError) Error() string {
	if e.ID == "" {
		return "edit action has no id"
	}
	return fmt.Sprintf("edit action %s not found", e.ID)
}
