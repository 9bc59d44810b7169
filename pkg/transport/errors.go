package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
)

// StatusClientClosedRequest is the non-standard status recorded when the
// client goes away before the response is written.
const StatusClientClosedRequest = 499

var statusByType = map[api.ErrorType]int{
	api.ErrorTypeInvalidRequest:  http.StatusBadRequest,
	api.ErrorTypeConfiguration:   http.StatusBadRequest,
	api.ErrorTypeNotFound:        http.StatusNotFound,
	api.ErrorTypeTooManyRequests: http.StatusTooManyRequests,
	api.ErrorTypeServerError:     http.StatusInternalServerError,
	api.ErrorTypeModelError:      http.StatusInternalServerError,
}

// HTTPStatusFromError returns the HTTP status for an APIError. Unknown
// types map to 500. Body size, media type and method failures are decided
// by the HTTP adapter itself.
func HTTPStatusFromError(err *api.APIError) int {
	if status, ok := statusByType[err.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ToAPIError converts any completer error into an APIError. Plain errors
// become server errors.
func ToAPIError(err error) *api.APIError {
	if apiErr, ok := api.As(err); ok {
		return apiErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return api.NewServerError("request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return api.NewServerError("request timed out")
	}
	return api.NewServerError(err.Error())
}

// WriteErrorResponse writes the {"error": ...} envelope with the given
// status.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteError writes any completer error. A cancelled request is answered
// with StatusClientClosedRequest.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := ToAPIError(err)
	status := HTTPStatusFromError(apiErr)
	if errors.Is(err, context.Canceled) {
		status = StatusClientClosedRequest
	}
	WriteErrorResponse(w, apiErr, status)
}
