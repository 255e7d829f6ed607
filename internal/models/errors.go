package models

import (
	"errors"
	"fmt"
)

// Error categories shared by every cube operation. Callers test for them
// with errors.Is; operations add context with fmt.Errorf and %w.
var (
	// ErrInvalidArgument covers wrong shapes, length mismatches, bad
	// moment orders, bad windows and points outside the cube.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingMetadata is returned when a required axis keyword is absent.
	ErrMissingMetadata = errors.New("missing metadata")

	// ErrNumericalFailure covers failed solves and non-convergent iterations.
	ErrNumericalFailure = errors.New("numerical failure")
)

// ArgumentError names the argument that was rejected and why.
type ArgumentError struct {
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Arg, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidArgument) match.
func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// InvalidArgf builds an ArgumentError with a formatted reason.
func InvalidArgf(arg, format string, args ...interface{}) error {
	return &ArgumentError{Arg: arg, Reason: fmt.Sprintf(format, args...)}
}

// MissingMetadataf reports a missing keyword.
func MissingMetadataf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMissingMetadata, fmt.Sprintf(format, args...))
}

// NumericalFailuref reports a numerical failure.
func NumericalFailuref(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNumericalFailure, fmt.Sprintf(format, args...))
}
