package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error codes carried by AppError.
const (
	CodeConfig      = "CONFIG_ERROR"
	CodeDatabase    = "DB_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeRead        = "READ_ERROR"
	CodeUnsupported = "UNSUPPORTED"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrUnsupported  = errors.New("unsupported file type")
	ErrOCR          = errors.New("ocr failed")

	// ErrNoComposition is returned when a document yields no table or no records.
	ErrNoComposition = errors.New("no chemical composition found")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ToStatus maps an application error onto a gRPC status error. Errors that
// already carry a status pass through unchanged.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeFor(err), err.Error())
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation), errors.Is(err, ErrUnsupported):
		return codes.InvalidArgument
	case errors.Is(err, ErrNoComposition):
		return codes.FailedPrecondition
	case errors.Is(err, ErrOCR):
		return codes.Unavailable
	}
	var ae *AppError
	if errors.As(err, &ae) && ae.Code == CodeRead {
		return codes.NotFound
	}
	return codes.Internal
}
