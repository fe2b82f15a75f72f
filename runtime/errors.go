package runtime

import (
	"fmt"

	"github.com/pkg/errors"
)

// EngineErrorReason classifies why a scan engine failed to reach a decision.
type EngineErrorReason int

// Reasons for an EngineError.
const (
	// EngineInternal is used for unclassified failures, including panics
	// recovered from a provider hook.
	EngineInternal EngineErrorReason = iota
	// EngineUnavailable means the engine, or a resource it depends on, could
	// not be reached. This includes the stored upload the host handed to
	// Complete() being missing or unreadable.
	EngineUnavailable
	// MalformedFile means the engine read the content but could not make
	// sense of it, such as a corrupt archive.
	MalformedFile
	// EngineTimeout means the engine didn't return within the time allowed.
	EngineTimeout
)

func (r EngineErrorReason) String() string {
	switch r {
	case EngineUnavailable:
		return "engine-unavailable"
	case MalformedFile:
		return "malformed-file"
	case EngineTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// The EngineError type is used to indicate that a scan engine failed to
// decide whether content is acceptable.
//
// An EngineError is never a rejection in itself. Whether the upload is
// accepted or rejected when the engine fails is decided by the failure policy
// the host configured.
type EngineError struct {
	Provider string
	Reason   EngineErrorReason
	Err      error
}

// Error returns the error message and adheres to the Error interface
func (e EngineError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("scan engine error (%s): %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("scan engine error (%s) in '%s': %s", e.Reason, e.Provider, e.Err)
}

// Cause returns the underlying error, for use with errors.Cause.
func (e EngineError) Cause() error {
	return e.Err
}

// NewEngineError creates an EngineError with given reason, the message is
// formatted using fmt.Sprint.
func NewEngineError(reason EngineErrorReason, a ...interface{}) EngineError {
	return EngineError{Reason: reason, Err: errors.New(fmt.Sprint(a...))}
}

// WrapEngineError wraps err as an EngineError with given reason. If err is, or
// was caused by, an EngineError that is returned instead.
func WrapEngineError(reason EngineErrorReason, err error, message string) EngineError {
	if e, ok := IsEngineError(err); ok {
		return e
	}
	return EngineError{Reason: reason, Err: errors.Wrap(err, message)}
}

// IsEngineError finds the EngineError in the chain of causes of err, such
// that an EngineError wrapped with errors.Wrap keeps its reason.
func IsEngineError(err error) (EngineError, bool) {
	for err != nil {
		if e, ok := err.(EngineError); ok {
			return e, true
		}
		switch c := err.(type) {
		case interface{ Cause() error }:
			err = c.Cause()
		case interface{ Unwrap() error }:
			err = c.Unwrap()
		default:
			return EngineError{}, false
		}
	}
	return EngineError{}, false
}
