package delivery

import (
	"errors"
	"fmt"
)

// Sentinel errors for delivery.
var (
	// ErrDeliveryFailure marks a failed remote delivery. It never escapes
	// Deliver; it is recorded in Local.Reason.
	ErrDeliveryFailure = errors.New("delivery: remote delivery failed")

	// ErrTransportDisabled is returned by the Disabled transport.
	ErrTransportDisabled = errors.New("delivery: transport disabled")

	// ErrBadURL is returned when an upload reports an unusable URL.
	ErrBadURL = errors.New("delivery: upload returned no usable URL")
)

// APIError represents an error response from an upload endpoint.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message or a body excerpt.
	Message string

	// Transport identifies which transport returned the error.
	Transport string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("delivery [%s]: HTTP %d: %s", e.Transport, e.StatusCode, e.Message)
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsUnauthorized returns true for HTTP 401 and 403.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}
