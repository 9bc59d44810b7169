package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/debug"
)

// errorBodyLimit caps how much of a failed response is read.
const errorBodyLimit = 4096

// backendError is the {"error": {...}} body OpenAI-compatible servers send
// with a failed request. Some servers put it on the SSE stream instead.
type backendError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// code renders the upstream code, which servers send as a string or a number.
func (b *backendError) code() string {
	if b.Error == nil || b.Error.Code == nil {
		return ""
	}
	return fmt.Sprint(b.Error.Code)
}

type statusRule struct {
	build    func(msg string) *api.APIError
	fallback string
}

func invalidRequest(msg string) *api.APIError { return api.NewInvalidRequestError("", msg) }

var statusRules = map[int]statusRule{
	http.StatusBadRequest:          {invalidRequest, "invalid request to backend"},
	http.StatusUnprocessableEntity: {invalidRequest, "invalid request to backend"},
	http.StatusUnauthorized:        {api.NewServerError, "backend authentication failed"},
	http.StatusForbidden:           {api.NewServerError, "backend authentication failed"},
	http.StatusNotFound:            {api.NewNotFoundError, "backend resource not found"},
	http.StatusTooManyRequests:     {api.NewTooManyRequestsError, "backend rate limit exceeded"},
}

// statusError turns a non-2xx response into an APIError, keeping the
// backend's message and code when the body carries them.
func statusError(resp *http.Response) *api.APIError {
	msg, code := readBackendError(resp.Body)

	rule, ok := statusRules[resp.StatusCode]
	if !ok {
		rule = statusRule{api.NewServerError, fmt.Sprintf("unexpected backend error (HTTP %d)", resp.StatusCode)}
		if resp.StatusCode >= http.StatusInternalServerError {
			rule.fallback = fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)
		}
	}
	if msg == "" {
		msg = rule.fallback
	}

	apiErr := rule.build(msg)
	apiErr.Code = code
	return apiErr
}

// transportError maps a failure to reach the backend. Cancellation is
// returned as is so callers can tell it apart from a backend fault.
func transportError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return api.NewServerError("backend request timed out")
	}
	return api.NewServerError("backend connection error: " + err.Error())
}

// readBackendError extracts message and code from an error body. A body
// that is not the JSON envelope is returned as the message, truncated.
func readBackendError(body io.Reader) (msg, code string) {
	if body == nil {
		return "", ""
	}
	data, err := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	if err != nil || len(data) == 0 {
		return "", ""
	}

	var be backendError
	if err := json.Unmarshal(data, &be); err == nil && be.Error != nil {
		return be.Error.Message, be.code()
	}
	return debug.Truncate(string(data), 200), ""
}
