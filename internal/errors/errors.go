package errors

import (
	"errors"
	"fmt"

	"github.com/welldanyogia/aap/pkg/address"
)

// Provider-side error taxonomy
var (
	// ErrInvalidAddress indicates a malformed AAP address
	ErrInvalidAddress = address.ErrInvalidAddress

	// ErrInvalidRequest indicates a request body that could not be decoded
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMissingAddress indicates the address query parameter was absent
	ErrMissingAddress = errors.New("missing address")

	// ErrMissingField indicates a required envelope field was absent
	ErrMissingField = errors.New("missing required field")

	// ErrWrongProvider indicates a delivery addressed to another provider
	ErrWrongProvider = errors.New("address does not belong to this provider")

	// ErrAddressNotFound indicates the address is not registered here
	ErrAddressNotFound = errors.New("address not found")

	// ErrAlreadyExists indicates the address is already registered
	ErrAlreadyExists = errors.New("address already registered")

	// ErrAuthenticationRequired indicates no bearer credential was sent
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrAuthenticationFailed indicates the bearer credential was not accepted
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the caller is being throttled
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")
)

// Error codes for API responses
const (
	CodeInvalidAddress         = "INVALID_ADDRESS"
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeMissingAddress         = "MISSING_ADDRESS"
	CodeMissingField           = "MISSING_FIELD"
	CodeWrongProvider          = "WRONG_PROVIDER"
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	CodeAuthenticationFailed   = "AUTHENTICATION_FAILED"
	CodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	CodeInternalError          = "INTERNAL_ERROR"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// New builds an AppError whose code is derived from err.
func New(err error, message string) *AppError {
	return NewAppError(err, message, GetErrorCode(err))
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAddressNotFound)
}

// IsClientError reports whether err is caused by the caller's input or
// credentials rather than by the provider.
func IsClientError(err error) bool {
	code := GetErrorCode(err)
	return code != CodeInternalError
}

// GetErrorCode returns the appropriate error code for an error. An AppError
// with an explicit code wins over its wrapped sentinel.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}

	switch {
	case errors.Is(err, ErrInvalidAddress):
		return CodeInvalidAddress
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrMissingAddress):
		return CodeMissingAddress
	case errors.Is(err, ErrMissingField):
		return CodeMissingField
	case errors.Is(err, ErrWrongProvider):
		return CodeWrongProvider
	case IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrAuthenticationRequired):
		return CodeAuthenticationRequired
	case errors.Is(err, ErrAuthenticationFailed):
		return CodeAuthenticationFailed
	case errors.Is(err, ErrRateLimitExceeded):
		return CodeRateLimitExceeded
	default:
		return CodeInternalError
	}
}
