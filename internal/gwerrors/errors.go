// Package gwerrors implements the gateway's client-facing error taxonomy:
// gateway-generated errors are rendered through a single JSON shape, whose
// correlation_id field is set only on copies made with WithCorrelationID.
package gwerrors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// GatewayError is a client-facing error with an HTTP status.
type GatewayError struct {
	Code          int    `json:"code"`
	Message       string `json:"message"`
	Details       string `json:"details,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	underlying    error
}

func (e *GatewayError) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.underlying)
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error { return e.underlying }

// WriteJSON renders the error to the response writer.
func (e *GatewayError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	_ = json.NewEncoder(w).Encode(e)
}

// Common, reusable error values; WithDetails/WithCorrelationID return copies.
var (
	ErrNotFound            = &GatewayError{Code: http.StatusNotFound, Message: "Not Found"}
	ErrTooManyRequests     = &GatewayError{Code: http.StatusTooManyRequests, Message: "Too Many Requests"}
	ErrBadGateway          = &GatewayError{Code: http.StatusBadGateway, Message: "Bad Gateway"}
	ErrServiceUnavailable  = &GatewayError{Code: http.StatusServiceUnavailable, Message: "Service Unavailable"}
	ErrGatewayTimeout      = &GatewayError{Code: http.StatusGatewayTimeout, Message: "Gateway Timeout"}
	ErrInternalServerError = &GatewayError{Code: http.StatusInternalServerError, Message: "Internal Server Error"}
)

// New creates a GatewayError.
func New(code int, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message}
}

// Wrap attaches an underlying error for logging/unwrapping without
// exposing it to the client.
func Wrap(err error, code int, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message, underlying: err}
}

// WithDetails returns a copy carrying a client-visible details string.
func (e *GatewayError) WithDetails(details string) *GatewayError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCorrelationID returns a copy stamped with a correlation id.
func (e *GatewayError) WithCorrelationID(id string) *GatewayError {
	cp := *e
	cp.CorrelationID = id
	return &cp
}
