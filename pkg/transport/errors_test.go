package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		errType    api.ErrorType
		wantStatus int
	}{
		{api.ErrorTypeInvalidRequest, http.StatusBadRequest},
		{api.ErrorTypeConfiguration, http.StatusBadRequest},
		{api.ErrorTypeNotFound, http.StatusNotFound},
		{api.ErrorTypeTooManyRequests, http.StatusTooManyRequests},
		{api.ErrorTypeServerError, http.StatusInternalServerError},
		{api.ErrorTypeModelError, http.StatusInternalServerError},
		{api.ErrorType("brand_new"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			if got := HTTPStatusFromError(&api.APIError{Type: tt.errType}); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	original := api.NewNotFoundError("gone")

	tests := []struct {
		name        string
		err         error
		wantType    api.ErrorType
		wantMessage string
	}{
		{"wrapped api error", fmt.Errorf("backend: %w", original), api.ErrorTypeNotFound, "gone"},
		{"plain", errors.New("boom"), api.ErrorTypeServerError, "boom"},
		{"cancelled", fmt.Errorf("call: %w", context.Canceled), api.ErrorTypeServerError, "request cancelled"},
		{"deadline", context.DeadlineExceeded, api.ErrorTypeServerError, "request timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			if got.Type != tt.wantType || got.Message != tt.wantMessage {
				t.Errorf("ToAPIError = %+v, want %s %q", got, tt.wantType, tt.wantMessage)
			}
		})
	}

	if ToAPIError(original) != original {
		t.Error("an APIError should be returned as is")
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   api.ErrorType
		wantParam  string
	}{
		{
			name:       "stream with tools",
			err:        api.NewConfigurationError("stream", "stream_with_tools", "set stream to false"),
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeConfiguration,
			wantParam:  "stream",
		},
		{
			name:       "rate limited backend",
			err:        fmt.Errorf("call: %w", api.NewTooManyRequestsError("slow down")),
			wantStatus: http.StatusTooManyRequests,
			wantType:   api.ErrorTypeTooManyRequests,
		},
		{
			name:       "plain error",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantType:   api.ErrorTypeServerError,
		},
		{
			name:       "client went away",
			err:        fmt.Errorf("upstream: %w", context.Canceled),
			wantStatus: StatusClientClosedRequest,
			wantType:   api.ErrorTypeServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var resp api.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if resp.Error == nil {
				t.Fatal("error object is nil")
			}
			if resp.Error.Type != tt.wantType {
				t.Errorf("type = %q, want %q", resp.Error.Type, tt.wantType)
			}
			if resp.Error.Param != tt.wantParam {
				t.Errorf("param = %q, want %q", resp.Error.Param, tt.wantParam)
			}
		})
	}
}
