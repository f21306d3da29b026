package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx response from the server. Message carries the server's
// error text verbatim so validation failures can be surfaced unchanged.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err is a 401 response.
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsValidationError reports whether err is a 4xx rejection other than 401.
// Validation errors must not be retried and never touch the cache.
func IsValidationError(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
		apiErr.StatusCode != http.StatusUnauthorized
}
