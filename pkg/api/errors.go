package api

import (
	"errors"
	"strings"
)

// ErrorType is the "type" field of the error envelope.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeModelError      ErrorType = "model_error"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"

	// ErrorTypeConfiguration marks option combinations the shim refuses,
	// such as streaming together with tools.
	ErrorTypeConfiguration ErrorType = "configuration_error"
)

// APIError is the error value shared by the facade, the transports and
// the gateway. Its JSON form is the body of the "error" envelope.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error renders the error as "type[code]: message (param: p)", leaving out
// the parts that are empty.
func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Code != "" {
		b.WriteString("[" + e.Code + "]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Param != "" {
		b.WriteString(" (param: " + e.Param + ")")
	}
	return b.String()
}

// ErrorResponse is the top-level {"error": {...}} envelope.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

func newError(t ErrorType, param, message string) *APIError {
	return &APIError{Type: t, Param: param, Message: message}
}

// NewInvalidRequestError reports a malformed request. param names the
// offending field and may be empty.
func NewInvalidRequestError(param, message string) *APIError {
	return newError(ErrorTypeInvalidRequest, param, message)
}

func NewNotFoundError(message string) *APIError {
	return newError(ErrorTypeNotFound, "", message)
}

func NewServerError(message string) *APIError {
	return newError(ErrorTypeServerError, "", message)
}

func NewModelError(message string) *APIError {
	return newError(ErrorTypeModelError, "", message)
}

func NewTooManyRequestsError(message string) *APIError {
	return newError(ErrorTypeTooManyRequests, "", message)
}

// NewConfigurationError reports a refused option combination. It is raised
// before any backend call.
func NewConfigurationError(param, code, message string) *APIError {
	e := newError(ErrorTypeConfiguration, param, message)
	e.Code = code
	return e
}

// As returns the APIError carried by err, if any.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsType reports whether err is (or wraps) an APIError of the given type.
func IsType(err error, t ErrorType) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Type == t
}
