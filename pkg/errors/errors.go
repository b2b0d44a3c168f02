package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	CodeCouponExpired    ErrorCode = "COUPON_EXPIRED"
	CodeAlreadyUsed      ErrorCode = "ALREADY_USED"
	CodeAlreadyRedeemed  ErrorCode = "ALREADY_REDEEMED"
	CodeMissingToken     ErrorCode = "MISSING_TOKEN"
	CodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
	CodeSessionExpired   ErrorCode = "SESSION_EXPIRED"
	CodeCorruptRecord    ErrorCode = "CORRUPT_RECORD"
	CodeConfiguration    ErrorCode = "CONFIGURATION_ERROR"
	CodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	CodeBadRequest       ErrorCode = "BAD_REQUEST"
	CodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatusMap maps error codes to HTTP status codes
var HTTPStatusMap = map[ErrorCode]int{
	CodeValidation:       http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeInvalidToken:     http.StatusBadRequest,
	CodeCouponExpired:    http.StatusBadRequest,
	CodeAlreadyUsed:      http.StatusBadRequest,
	CodeAlreadyRedeemed:  http.StatusBadRequest,
	CodeMissingToken:     http.StatusUnauthorized,
	CodeUnauthenticated:  http.StatusUnauthorized,
	CodeSessionExpired:   http.StatusUnauthorized,
	CodeCorruptRecord:    http.StatusInternalServerError,
	CodeConfiguration:    http.StatusInternalServerError,
	CodeStoreUnavailable: http.StatusServiceUnavailable,
	CodeBadRequest:       http.StatusBadRequest,
	CodeInternalError:    http.StatusInternalServerError,
}

// AppError represents an application error with code and message
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Newf creates a new AppError with formatted message
func Newf(code ErrorCode, cause error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// HTTPStatus returns the HTTP status code for this error
func (e *AppError) HTTPStatus() int {
	if status, exists := HTTPStatusMap[e.Code]; exists {
		return status
	}
	return http.StatusInternalServerError
}

// IsRetryable checks if the error is retryable
func (e *AppError) IsRetryable() bool {
	return e.Code == CodeStoreUnavailable
}

// As extracts an AppError from err, wrapping unknown errors as internal
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(CodeInternalError, "Internal server error", err)
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
