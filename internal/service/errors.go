package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies business errors so handlers can map them to HTTP
// status codes without string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInvalidTransition
	KindUnsupportedBusinessType
	KindInternal
)

// Error is the error type returned by all order-workflow operations.
// Business-rule violations keep their kind; unexpected failures are wrapped
// as KindInternal with the original message preserved.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func invalidTransitionf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func unsupportedBusinessTypef(format string, args ...any) *Error {
	return &Error{Kind: KindUnsupportedBusinessType, Message: fmt.Sprintf(format, args...)}
}

// internalErr wraps an unexpected failure, keeping the original message for
// diagnostics. Typed business errors pass through untouched.
func internalErr(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

// Kind extracts the ErrorKind from err, or KindUnknown if err is not a
// service error.
func Kind(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
