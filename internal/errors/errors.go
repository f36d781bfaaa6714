package errors

import (
	stderrors "errors"
	"fmt"

	"gocp/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    codeFor(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeNotFound      = "NOT_FOUND"
	CodeConfigInvalid = "CONFIG_INVALID"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeNotTrained    = "NOT_TRAINED"
	CodeUnsupported   = "UNSUPPORTED_OPERATION"
	CodeDataMismatch  = "DATA_MISMATCH"
	CodeInternalError = "INTERNAL_ERROR"
)

// codeFor maps domain sentinels onto error codes.
func codeFor(err error) string {
	switch {
	case core.IsNotFoundError(err):
		return CodeNotFound
	case core.IsNotTrainedError(err):
		return CodeNotTrained
	case core.IsUnsupportedError(err):
		return CodeUnsupported
	case core.IsDataError(err):
		return CodeDataMismatch
	case stderrors.Is(err, core.ErrInvalidSignificance), stderrors.Is(err, core.ErrInvalidConfidence):
		return CodeInvalidInput
	}
	return CodeInternalError
}

// Common error constructors
func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// NotTrained reports an operation attempted before fitting. It unwraps to core.ErrNotTrained.
func NotTrained(component string) *AppError {
	return &AppError{
		Code:    CodeNotTrained,
		Message: fmt.Sprintf("%s must be fitted first", component),
		Cause:   core.ErrNotTrained,
	}
}

// Unsupported wraps a capability failure such as a missing predictor feature.
func Unsupported(message string, cause error) *AppError {
	if cause == nil {
		cause = core.ErrUnsupportedOperation
	}
	return &AppError{
		Code:    CodeUnsupported,
		Message: message,
		Cause:   cause,
	}
}

func DataMismatch(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeDataMismatch,
		Message: message,
		Cause:   cause,
	}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
