// Package perrors defines the closed set of error kinds shared by the
// profile model, converter, validator, merger and pipeline.
package perrors

import "fmt"

// Kind classifies an Error. The set is closed; callers should switch
// on it rather than string-matching messages.
type Kind int

const (
	// Parse means the input bytes are not a valid protobuf of the
	// declared schema.
	Parse Kind = iota
	// Invariant means a parsed profile violates a structural invariant.
	Invariant
	// IncompatibleValueTypes means a merged-in profile's value types
	// cannot be reconciled with the output's fixed list.
	IncompatibleValueTypes
	// Overflow is reserved; sums saturate instead of overflowing, so
	// this is currently unused in practice.
	Overflow
	// Misuse means an API was called in the wrong state, e.g. Add
	// after Finish.
	Misuse
	// Internal means a bug-level invariant was broken.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "Parse"
	case Invariant:
		return "Invariant"
	case IncompatibleValueTypes:
		return "IncompatibleValueTypes"
	case Overflow:
		return "Overflow"
	case Misuse:
		return "Misuse"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every fallible entry
// point in this module.
type Error struct {
	Kind    Kind
	Table   string // table/record the error pertains to, if any
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Table != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Table, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Table, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error with an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WrapTable builds an Error naming the offending table/record.
func WrapTable(kind Kind, table, message string, cause error) *Error {
	return &Error{Kind: kind, Table: table, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
