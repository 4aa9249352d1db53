package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for the upload session taxonomy. Callers are expected to
// classify failures with errors.Is and never retry on their own.
var (
	// ErrInput indicates malformed or missing request fields, including
	// unknown routing keys. Reported before any storage call is made.
	ErrInput = errors.New("session: invalid input")

	// ErrDestinationUnavailable indicates the resolved destination cannot
	// accept uploads.
	ErrDestinationUnavailable = errors.New("session: destination unavailable")

	// ErrSessionNotFound indicates the referenced session is unknown.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrSessionTerminal indicates the referenced session was already
	// completed or aborted.
	ErrSessionTerminal = errors.New("session: session already finalized")

	// ErrIncompletePartSet indicates the submitted part set does not cover
	// part numbers 1..expectedPartCount contiguously with non-empty tokens.
	ErrIncompletePartSet = errors.New("session: incomplete part set")

	// ErrUpstream indicates the storage service rejected an operation.
	ErrUpstream = errors.New("session: storage rejected operation")

	// ErrAbortFailure indicates a best-effort cleanup attempt failed. It is
	// diagnostic only and must never be escalated over the error that
	// triggered the cleanup.
	ErrAbortFailure = errors.New("session: abort failed")
)

// OpError wraps a failed storage operation with the bucket and object key it
// was addressed to.
type OpError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

// Error ...
func (e *OpError) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("storage.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("storage.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
}

// Unwrap ...
func (e *OpError) Unwrap() error {
	return e.Err
}

func upstreamError(op, bucket, key string, err error) error {
	return &OpError{Op: op, Bucket: bucket, Key: key, Err: fmt.Errorf("%w: %v", ErrUpstream, err)}
}
