// Package errors defines the error taxonomy shared by the optimizer,
// snapshot codec, bytecode cache, and profiler: a small closed set of
// kinds with causal wrapping via github.com/pkg/errors.
package errors

import (
	"fmt"
	stderrors "errors"

	pkgerrors "github.com/pkg/errors"
)

// Kind tags the taxonomy bucket an Error belongs to.
type Kind string

const (
	KindCorruptSnapshot       Kind = "corrupt_snapshot"
	KindIO                    Kind = "io"
	KindProfilerInconsistency Kind = "profiler_inconsistency"
	KindDeopt                 Kind = "deopt"
	KindUnknownOpcode         Kind = "unknown_opcode"
	KindResourceExhaustion    Kind = "resource_exhaustion"
)

// Error is a taxonomy-tagged error with an optional wrapped cause. Cause
// chains are built with github.com/pkg/errors, so formatting Cause() with
// %+v prints a stack trace from the point the cause was wrapped; Error
// itself has no Format method, and %+v on it prints Error().
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Cause matches github.com/pkg/errors' Causer interface.
func (e *Error) Cause() error { return e.cause }

func newErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	var wrapped error
	if cause != nil {
		wrapped = pkgerrors.Wrap(cause, msg)
	}
	return &Error{Kind: kind, Message: msg, cause: wrapped}
}

// CorruptSnapshot reports a malformed or version-rejected snapshot stream.
func CorruptSnapshot(cause error, format string, args ...interface{}) *Error {
	return newErr(KindCorruptSnapshot, cause, format, args...)
}

// IO reports a filesystem failure reading or writing a cache entry or
// snapshot file.
func IO(cause error, format string, args ...interface{}) *Error {
	return newErr(KindIO, cause, format, args...)
}

// ProfilerInconsistency reports a type profile or compiled block in a
// state its own invariants forbid (e.g. a merge that produced a
// contradiction the caller didn't expect).
func ProfilerInconsistency(format string, args ...interface{}) *Error {
	return newErr(KindProfilerInconsistency, nil, format, args...)
}

// Deopt reports a baseline-compiled block bailing out back to the
// interpreter tier.
func Deopt(format string, args ...interface{}) *Error {
	return newErr(KindDeopt, nil, format, args...)
}

// UnknownOpcode reports a byte in an instruction stream that names no
// known opcode.
func UnknownOpcode(b byte) *Error {
	return newErr(KindUnknownOpcode, nil, "unknown opcode 0x%02x", b)
}

// ResourceExhaustion reports a configured limit (cache size, runaway-loop
// guard, deopt ceiling) being hit.
func ResourceExhaustion(format string, args ...interface{}) *Error {
	return newErr(KindResourceExhaustion, nil, format, args...)
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
