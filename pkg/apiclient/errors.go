package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	// Status is the envelope status ("unhealthy", "error"), if any.
	Status  string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsNotFound returns true if this is a not found error.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnavailable returns true if the service reported itself not ready.
func (e *APIError) IsUnavailable() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
