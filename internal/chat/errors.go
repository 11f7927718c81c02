package chat

import (
	"errors"
	"fmt"
)

// ValidationError rejects a request before any side effect happened.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StorageError means the durable store failed; the operation was aborted.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// CacheError is logged and swallowed, never surfaced to a client.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string { return fmt.Sprintf("cache %s: %v", e.Op, e.Err) }
func (e *CacheError) Unwrap() error { return e.Err }

// DeliveryError is a failed push to a single connection.
type DeliveryError struct {
	ConnID string
	Err    error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("deliver to %s: %v", e.ConnID, e.Err) }
func (e *DeliveryError) Unwrap() error { return e.Err }

// ErrConnGone is returned by a Deliverer for a connection it no longer knows.
var ErrConnGone = errors.New("connection gone")

// clientReason returns the text reported to the originating connection, and
// false for errors that must stay server-side.
func clientReason(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	var se *StorageError
	if errors.As(err, &se) {
		switch se.Op {
		case "append":
			return "failed to send message", true
		case "room lookup":
			return "failed to join room", true
		}
		return "storage unavailable", true
	}
	return "", false
}
