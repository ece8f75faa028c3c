// Package api holds the HTTP request, response and error bodies of the
// Bastion API.
package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an error.
type ErrorDetail struct {
	// Message is a human readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Param names the offending request field, if any.
	Param string `json:"param,omitempty"`

	// Code is a machine readable error code.
	Code string `json:"code,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeNotFound           = "not_found"
	ErrorTypeServerError        = "server_error"
	ErrorTypeServiceUnavailable = "service_unavailable"
)

// Error codes.
const (
	CodeMissingField    = "missing_field"
	CodeInvalidValue    = "invalid_value"
	CodeInvalidJSON     = "invalid_json"
	CodeRequestTooLarge = "request_too_large"
	CodeInternalError   = "internal_error"
	CodeUnavailable     = "unavailable"
)

// NewInvalidRequestError creates a 400 error body.
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeInvalidRequest, Param: param, Code: code}}
}

// NewNotFoundError creates a 404 error body.
func NewNotFoundError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeNotFound}}
}

// NewServerError creates a 500 error body.
func NewServerError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeServerError, Code: CodeInternalError}}
}

// NewUnavailableError creates a 503 error body.
func NewUnavailableError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeServiceUnavailable, Code: CodeUnavailable}}
}

// HTTPStatusCode returns the status code matching the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		if e.Code == CodeRequestTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error body with its matching status code.
func WriteError(w http.ResponseWriter, e *ErrorResponse) {
	WriteJSON(w, e.Error.HTTPStatusCode(), e)
}
