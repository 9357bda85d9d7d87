package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrStorageUnavailable marks local store open/write failures. Callers that
// need the distinction match it with errors.Is.
var ErrStorageUnavailable = errors.New("local storage unavailable")

// StoreError wraps a failed local store operation with its context.
type StoreError struct {
	Op         string // e.g. "PutLabel", "DeleteOrder"
	Collection string
	ID         string
	Err        error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s failed for %s %s: %v", e.Op, e.Collection, e.ID, e.Err)
	}
	if e.Collection != "" {
		return fmt.Sprintf("store %s failed for %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// RemoteError represents a failed remote store operation. StatusCode is the
// HTTP status when the server answered, 0 for transport-level failures.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Collection string
	ID         string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote %s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true for a 404 response.
func (e *RemoteError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsPermissionDenied returns true for 401/403 responses. During upload these
// usually mean the document already exists under security rules that forbid
// overwriting it, so the sync engine keeps them out of the error tally.
func (e *RemoteError) IsPermissionDenied() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsTimeout returns true when the operation was cut off by its deadline.
func (e *RemoteError) IsTimeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsUnreachable returns true for transport-level failures: no response and
// no deadline involved, i.e. the remote store could not be contacted at all.
func (e *RemoteError) IsUnreachable() bool {
	return e.StatusCode == 0 && e.Err != nil && !e.IsTimeout()
}

// NewRemoteError creates a RemoteError for a server response.
func NewRemoteError(op string, statusCode int, message string) *RemoteError {
	return &RemoteError{
		Op:         op,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ValidationError rejects a record before it reaches any store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// DuplicateKeyError rejects a save whose grouping key is already present.
// This is a user-facing hard stop, not a silent merge.
type DuplicateKeyError struct {
	Collection string
	Key        string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q already exists in %s", e.Key, e.Collection)
}
