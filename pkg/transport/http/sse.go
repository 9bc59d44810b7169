package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/transport"
)

var (
	errClosed       = errors.New("response already written")
	errStreaming    = errors.New("response is streaming")
	errNotStreaming = errors.New("response is not streaming")
)

var doneEvent = []byte("[DONE]")

type phase uint8

const (
	phasePending phase = iota
	phaseStreaming
	phaseClosed
)

// responseWriter answers one chat completion request: either a single JSON
// completion or a Chat Completions event stream, never both.
type responseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu       sync.Mutex
	phase    phase
	streamed bool
}

var _ transport.ResponseWriter = (*responseWriter)(nil)

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w: w, rc: http.NewResponseController(w)}
}

// WriteChunk sends chunk as one "data:" event, opening the stream first
// when needed.
func (rw *responseWriter) WriteChunk(_ context.Context, chunk *chat.Chunk) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	switch rw.phase {
	case phaseClosed:
		return errClosed
	case phasePending:
		h := rw.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		rw.phase = phaseStreaming
		rw.streamed = true
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}
	return rw.event(data)
}

// WriteCompletion sends c as the whole JSON body.
func (rw *responseWriter) WriteCompletion(_ context.Context, c *chat.Completion) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	switch rw.phase {
	case phaseStreaming:
		return errStreaming
	case phaseClosed:
		return errClosed
	}
	rw.phase = phaseClosed

	rw.w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw.w).Encode(c); err != nil {
		return fmt.Errorf("encoding completion: %w", err)
	}
	return nil
}

func (rw *responseWriter) Flush() error {
	return rw.rc.Flush()
}

// close ends an open stream with [DONE]. Anything else is left alone.
func (rw *responseWriter) close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.phase != phaseStreaming {
		return nil
	}
	rw.phase = phaseClosed
	return rw.event(doneEvent)
}

// abort ends an open stream with an {"error": ...} event and [DONE], the
// way Chat Completions servers report a failure mid-stream.
func (rw *responseWriter) abort(apiErr *api.APIError) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.phase != phaseStreaming {
		return errNotStreaming
	}
	rw.phase = phaseClosed

	data, err := json.Marshal(api.ErrorResponse{Error: apiErr})
	if err != nil {
		return fmt.Errorf("encoding error event: %w", err)
	}
	if err := rw.event(data); err != nil {
		return err
	}
	return rw.event(doneEvent)
}

// streaming reports whether any chunk went out, so errors can no longer
// change the status code.
func (rw *responseWriter) streaming() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.streamed
}

// event writes one SSE event and flushes it. rw.mu must be held.
func (rw *responseWriter) event(data []byte) error {
	if _, err := fmt.Fprintf(rw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	if err := rw.rc.Flush(); err != nil {
		return fmt.Errorf("flushing event: %w", err)
	}
	return nil
}
