package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
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

// Error codes
const (
	CodeMissingInput      = "MISSING_INPUT"
	CodeExtractionFailure = "EXTRACTION_FAILURE"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeConfig            = "CONFIG_ERROR"
)

// Common application errors
var (
	ErrMissingInput      = errors.New("missing input")
	ErrExtractionFailure = errors.New("extraction failure")
	ErrInvalidInput      = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// MissingInput reports a request with no usable image or data.
func MissingInput(message string) error {
	return NewAppError(CodeMissingInput, message, ErrMissingInput)
}

// InvalidInput reports a request whose image or parameters cannot be used.
func InvalidInput(message string) error {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

// ExtractionFailure wraps a collaborator error so callers can match ErrExtractionFailure.
func ExtractionFailure(message string, cause error) error {
	return NewAppError(CodeExtractionFailure, message, errors.Join(ErrExtractionFailure, cause))
}

// GRPCStatus maps an application error to a gRPC status error.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrMissingInput), errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrExtractionFailure):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// HTTPStatus maps an application error to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingInput), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrExtractionFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
