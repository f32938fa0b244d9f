// Package errs defines the machine-readable error kinds returned by the
// matching engine and the attendance pipeline.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	// KindUnknown is used for errors that carry no kind.
	KindUnknown Kind = ""

	// KindNoFaceDetected means the single-face flow got zero faces.
	KindNoFaceDetected Kind = "NoFaceDetected"
	// KindMultipleFacesDetected means the single-face flow got more than one face.
	KindMultipleFacesDetected Kind = "MultipleFacesDetected"
	// KindInvalidThreshold means the threshold is outside the accepted range.
	KindInvalidThreshold Kind = "InvalidThreshold"
	// KindDimensionMismatch means two descriptors have incompatible lengths.
	KindDimensionMismatch Kind = "DimensionMismatch"
	// KindInvalidDescriptor means a descriptor is empty or holds NaN/Inf values.
	KindInvalidDescriptor Kind = "InvalidDescriptor"
	// KindExtractionTimeout means the extractor did not answer in time.
	KindExtractionTimeout Kind = "ExtractionTimeout"
	// KindExtractionFailed means the extractor answered with an error.
	KindExtractionFailed Kind = "ExtractionFailed"
	// KindAlreadyMarked flags an idempotent no-op write. It is never returned as an error.
	KindAlreadyMarked Kind = "AlreadyMarked"
	// KindStorageWriteFailed means persisting one attendance record failed.
	KindStorageWriteFailed Kind = "StorageWriteFailed"
	// KindNotRegistered means the volunteer has no gallery entry for the event.
	KindNotRegistered Kind = "NotRegistered"
	// KindInvalidRequest covers malformed input (missing IDs, bad uploads).
	KindInvalidRequest Kind = "InvalidRequest"
	// KindCanceled means the request context ended before the item was handled.
	KindCanceled Kind = "Canceled"
)

// Error is a kinded error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
// This lets errors.Is(err, errs.New(errs.KindDimensionMismatch, "")) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a kinded error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to a cause. A nil cause still yields an error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human-readable message of a kinded error, or err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
