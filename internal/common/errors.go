package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error codes for the four failure kinds of a check, plus configuration.
const (
	CodeSourceFetch = "SOURCE_FETCH_ERROR"
	CodeExtraction  = "EXTRACTION_ERROR"
	CodeOracle      = "ORACLE_ERROR"
	CodeValidation  = "VALIDATION_ERROR"
	CodeConfig      = "CONFIG_ERROR"
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

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrMalformed    = errors.New("malformed schema")
	ErrUnparseable  = errors.New("unparseable response")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewSourceFetchError(message string, cause error) *AppError {
	return NewAppError(CodeSourceFetch, message, cause)
}

func NewExtractionError(message string, cause error) *AppError {
	return NewAppError(CodeExtraction, message, cause)
}

func NewOracleError(message string, cause error) *AppError {
	return NewAppError(CodeOracle, message, cause)
}

func NewValidationError(message string) *AppError {
	return NewAppError(CodeValidation, message, ErrInvalidInput)
}

// IsKind reports whether err (or anything it wraps) is an AppError with the given code.
func IsKind(err error, code string) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// ToGRPCStatus maps an application error onto a gRPC status error.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && !isAppError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, msg)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, msg)
	case IsKind(err, CodeValidation), IsKind(err, CodeExtraction):
		return status.Error(codes.InvalidArgument, msg)
	case IsKind(err, CodeSourceFetch) && errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, msg)
	case IsKind(err, CodeSourceFetch):
		return status.Error(codes.FailedPrecondition, msg)
	case IsKind(err, CodeOracle):
		return status.Error(codes.Unavailable, msg)
	case IsKind(err, CodeConfig):
		return status.Error(codes.FailedPrecondition, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}

func isAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}
