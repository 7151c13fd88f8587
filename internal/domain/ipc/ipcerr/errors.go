// Package ipcerr defines the error kinds returned by the IPC engine.
//
// Every operation returns an *Error carrying the operation name and a Kind.
// Callers match kinds with errors.Is against the sentinel values:
//
//	if errors.Is(err, ipcerr.ErrWouldBlock) {
//	    // queue empty, retry later
//	}
package ipcerr

import (
	"errors"
	"fmt"
)

// Kind classifies an IPC failure
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindNameConflict
	KindCapacityExceeded
	KindWouldBlock
	KindOutOfMemory
	KindDoubleFree
	KindInvalidIndex
	KindUnsupported
	KindTimeout
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindNameConflict:
		return "name_conflict"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindWouldBlock:
		return "would_block"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindDoubleFree:
		return "double_free"
	case KindInvalidIndex:
		return "invalid_index"
	case KindUnsupported:
		return "unsupported"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per kind
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrNameConflict     = &Error{Kind: KindNameConflict}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded}
	ErrWouldBlock       = &Error{Kind: KindWouldBlock}
	ErrOutOfMemory      = &Error{Kind: KindOutOfMemory}
	ErrDoubleFree       = &Error{Kind: KindDoubleFree}
	ErrInvalidIndex     = &Error{Kind: KindInvalidIndex}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
	ErrTimeout          = &Error{Kind: KindTimeout}
)

// Error is an IPC failure with operation context
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// New creates an error of the given kind for an operation
func New(op string, kind Kind, format string, args ...any) *Error {
	var cause error
	if format != "" {
		cause = fmt.Errorf(format, args...)
	}
	return &Error{Op: op, Kind: kind, Err: cause}
}

// Wrap attaches an operation and kind to an underlying error
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Error returns the error message
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so sentinels compare by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err signals backpressure rather than a fault.
// Callers map these to "retry".
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindWouldBlock, KindCapacityExceeded, KindTimeout:
		return true
	default:
		return false
	}
}
