// Package errs provides the error kinds the investing engine distinguishes between.
package errs

import (
	"errors"
	"strings"
)

// Code identifies the failure category of an error.
type Code string

const (
	// CodeTransport is a hard network, timeout or unexpected platform failure. It aborts the current cycle.
	CodeTransport Code = "transport"
	// CodeReconciliation means the existing-investment snapshot could not be fully built.
	CodeReconciliation Code = "reconciliation"
	// CodeInvalidFormat marks malformed external input, e.g. an unparsable status set.
	CodeInvalidFormat Code = "invalid_format"
	// CodeNotFound marks a missing remote resource.
	CodeNotFound Code = "not_found"
)

// E is the structured error carried across package boundaries.
type E struct {
	Op      string
	Code    Code
	Message string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error for the operation and code.
func New(op string, code Code, opts ...Option) *E {
	e := &E{Op: strings.TrimSpace(op), Code: code}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithCause sets the underlying cause.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target is an *E with the same code.
func (e *E) Is(target error) bool {
	var t *E
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the code of the outermost *E in the chain.
func CodeOf(err error) (Code, bool) {
	var e *E
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsCode reports whether any *E in the chain carries code.
func IsCode(err error, code Code) bool {
	for err != nil {
		var e *E
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.cause
	}
	return false
}
