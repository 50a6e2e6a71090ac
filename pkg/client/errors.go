package client

import (
	"errors"
	"fmt"

	"github.com/welldanyogia/aap/pkg/address"
)

var (
	// ErrInvalidAddress is returned before any network call when an address
	// does not parse.
	ErrInvalidAddress = address.ErrInvalidAddress

	ErrResolveFailed       = errors.New("resolve failed")
	ErrMessageFailed       = errors.New("message failed")
	ErrRegistrationFailed  = errors.New("registration failed")
	ErrProviderUnreachable = errors.New("provider unreachable")
	ErrMalformedResponse   = errors.New("malformed provider response")
)

// ProviderError is a non-retryable error answered by a provider.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider returned HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// UnreachableError is returned once every attempt against URL has failed.
// It unwraps to the cause of the last attempt.
type UnreachableError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts: %v", ErrProviderUnreachable, e.URL, e.Attempts, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Is matches ErrProviderUnreachable.
func (e *UnreachableError) Is(target error) bool {
	return target == ErrProviderUnreachable
}
