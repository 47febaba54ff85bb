package utils

import (
	"errors"
	"fmt"
)

// Error kinds raised by the reliability engine. Match them with errors.Is.
var (
	// ErrValidation marks malformed or out-of-range scalar input.
	ErrValidation = errors.New("validation error")
	// ErrDomain marks a mathematically undefined operation.
	ErrDomain = errors.New("domain error")
	// ErrInsufficientData marks a fit attempted with too few usable observations.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvariantViolation marks a request that would break a record invariant.
	ErrInvariantViolation = errors.New("invariant violation")
)

// AppError wraps an operation, the error kind, the offending input, and an optional cause.
type AppError struct {
	Op    string
	Kind  error
	Field string
	Value any
	Msg   string
	Err   error
}

func (e *AppError) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s=%v)", msg, e.Field, e.Value)
	}
	if e.Kind != nil {
		msg = fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewAppError constructs an AppError without a kind.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// Validation reports an out-of-range input.
func Validation(op, field string, value any, msg string) error {
	return &AppError{Op: op, Kind: ErrValidation, Field: field, Value: value, Msg: msg}
}

// Domain reports an undefined mathematical operation.
func Domain(op, field string, value any, msg string) error {
	return &AppError{Op: op, Kind: ErrDomain, Field: field, Value: value, Msg: msg}
}

// InsufficientData reports a fit with too few usable observations.
func InsufficientData(op string, have int, msg string) error {
	return &AppError{Op: op, Kind: ErrInsufficientData, Field: "observations", Value: have, Msg: msg}
}

// InvariantViolation reports a record invariant breach, e.g. a duplicate criticality.
func InvariantViolation(op, field string, value any, msg string) error {
	return &AppError{Op: op, Kind: ErrInvariantViolation, Field: field, Value: value, Msg: msg}
}

// KindOf returns the engine error kind carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrDomain, ErrInsufficientData, ErrInvariantViolation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
