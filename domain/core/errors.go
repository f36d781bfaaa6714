package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Lookup errors
	ErrNotFound         = errors.New("resource not found")
	ErrSnapshotNotFound = fmt.Errorf("%w: snapshot", ErrNotFound)

	// Lifecycle errors
	ErrNotTrained        = errors.New("model is not trained")
	ErrAlreadyCalibrated = errors.New("predictor already calibrated")

	// Capability errors
	ErrUnsupportedOperation         = errors.New("unsupported operation")
	ErrUnknownNonconformityFunction = fmt.Errorf("%w: unknown nonconformity function", ErrUnsupportedOperation)
	ErrTooManyClasses               = fmt.Errorf("%w: too many classes", ErrUnsupportedOperation)

	// Data errors
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrEmptyCalibration    = errors.New("empty calibration set")
	ErrEmptyTrainingSet    = errors.New("empty training set")
	ErrInvalidSignificance = errors.New("significance level must lie in [0, 1]")
	ErrInvalidConfidence   = errors.New("confidence level must lie in [0, 1]")
)

// NewDimensionError reports a row/target or attribute count disagreement.
func NewDimensionError(what string, want, got int) error {
	return fmt.Errorf("%w: %s expected %d, got %d", ErrDimensionMismatch, what, want, got)
}

// NewUnknownFunctionError reports a nonconformity function name missing from a factory.
func NewUnknownFunctionError(name string) error {
	return fmt.Errorf("%w %q", ErrUnknownNonconformityFunction, name)
}

// NewNotFoundError reports a missing resource by ID.
func NewNotFoundError(resource error, id string) error {
	return fmt.Errorf("%w with id %s", resource, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsNotTrainedError(err error) bool {
	return errors.Is(err, ErrNotTrained)
}

func IsUnsupportedError(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}

func IsDataError(err error) bool {
	return errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrEmptyCalibration) ||
		errors.Is(err, ErrEmptyTrainingSet)
}
