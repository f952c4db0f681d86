package fortnox

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	// ErrValidation indicates a caller-supplied argument was rejected before any request was sent
	ErrValidation = errors.New("invalid argument")
	// ErrAuthentication indicates the token endpoint refused a refresh
	ErrAuthentication = errors.New("fortnox authentication failed")
	// ErrUnexpectedStatus indicates a response status outside the expectation for its verb
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrRateLimited indicates the server answered 429
	ErrRateLimited = errors.New("rate limited by fortnox")
)

// ValidationError describes a rejected argument
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// AuthenticationError is returned when a token refresh is refused
type AuthenticationError struct {
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fortnox token refresh failed: status %d: %s", e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("fortnox token refresh failed: %v", e.Err)
	}
	return "fortnox token refresh failed"
}

// Unwrap returns the underlying error
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrAuthentication
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// StatusError represents a Fortnox API response whose status did not match
// the expectation for its verb
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("fortnox API error: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is matches ErrUnexpectedStatus, and ErrRateLimited for 429 responses
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnexpectedStatus:
		return true
	case ErrRateLimited:
		return e.IsRateLimited()
	}
	return false
}

// IsRateLimited checks if the error is a 429 response
func (e *StatusError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound checks if the error indicates a not found response
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *StatusError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
