// Package ierrors defines the tagged error codes the core propagates.
//
// The core never logs; every failure is returned through this type so a
// caller can inspect Code and decide what to do. See spec §7 (Error
// Handling Design) and §6 (Error codes).
package ierrors

import (
	"fmt"
	"strings"
)

// Code is one of the seven tagged error codes the core surfaces.
type Code string

const (
	InvalidDType    Code = "InvalidDType"
	InvalidArgument Code = "InvalidArgument"
	ExceededDim     Code = "ExceededDim"
	NotCompiled     Code = "NotCompiled"
	EndIter         Code = "EndIter"
	BloscFailed     Code = "BloscFailed"
	Failed          Code = "Failed"
)

// Error is the tagged result the core returns in place of a raw error.
type Error struct {
	Code    Code
	Message string

	// Offset is a 1-based byte offset into the parsed source, set only
	// for parser errors (spec §4.4: "errors report a 1-based byte offset
	// into the source string").
	Offset int
	// Source is the original expression text, kept so Error() can print
	// a caret under Offset.
	Source string

	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Offset > 0 {
		fmt.Fprintf(&b, " (at offset %d)", e.Offset)
		if e.Source != "" {
			b.WriteString("\n  ")
			b.WriteString(e.Source)
			b.WriteString("\n  ")
			if e.Offset-1 > 0 {
				b.WriteString(strings.Repeat(" ", e.Offset-1))
			}
			b.WriteString("^")
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}

func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func NewInvalidArgument(format string, args ...interface{}) *Error {
	return New(InvalidArgument, format, args...)
}

func NewInvalidDType(format string, args ...interface{}) *Error {
	return New(InvalidDType, format, args...)
}

func NewExceededDim(format string, args ...interface{}) *Error {
	return New(ExceededDim, format, args...)
}

func NewNotCompiled(format string, args ...interface{}) *Error {
	return New(NotCompiled, format, args...)
}

// NewParseError builds a parser error carrying the 1-based byte offset of
// the offending token, per spec §4.4 / §7.
func NewParseError(offset int, source, format string, args ...interface{}) *Error {
	return &Error{
		Code:    NotCompiled,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
		Source:  source,
	}
}

// EndIterErr is the single shared sentinel for "iteration exhausted".
// has_next is the public predicate callers should use (spec §7); this
// sentinel must never leak through any other path.
var EndIterErr = &Error{Code: EndIter, Message: "iteration exhausted"}

func NewCodecError(op string, chunkIndex int, cause error) *Error {
	return &Error{
		Code:    BloscFailed,
		Message: fmt.Sprintf("codec operation %q failed on chunk %d", op, chunkIndex),
		Cause:   cause,
	}
}

// NewFailed marks an unreachable-state assertion. Per spec §7 this is
// catastrophic; callers may choose to abort instead of recovering.
func NewFailed(format string, args ...interface{}) *Error {
	return New(Failed, format, args...)
}
