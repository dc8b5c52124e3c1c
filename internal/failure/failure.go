// Package failure classifies the errors a conversion run can produce.
//
// Only EmptyInput, IO, Encode and Config failures ever terminate a run.
// MalformedRow and Sink failures are isolated where they happen and are
// only ever logged.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind string

const (
	// MalformedRow is a record that could not be parsed or has the wrong width.
	MalformedRow Kind = "malformed_row"
	// EmptyInput means no row exists to derive the schema from.
	EmptyInput Kind = "empty_input"
	// IO covers unreadable input and unwritable output.
	IO Kind = "io"
	// Sink is a failure to open or append to the quarantine file.
	Sink Kind = "sink"
	// Config is an invalid configuration value.
	Config Kind = "config"
	// Encode is a failure inside the columnar encoder.
	Encode Kind = "encode"
)

// Error is a classified error with an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a failure of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. It returns nil if err is nil.
func Wrap(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Is reports whether any error in err's chain is a failure of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the outermost failure in err's chain, or the
// empty Kind if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
