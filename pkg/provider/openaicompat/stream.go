package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/debug"
)

// maxSSELine bounds a single SSE line. Chunks carrying long tool-call
// arguments can exceed bufio.Scanner's 64 KiB default.
const maxSSELine = 1 << 20

const doneSentinel = "[DONE]"

// ParseSSEStream forwards the chunks of a Chat Completions event stream on
// ch until [DONE], EOF or cancellation. It does not close ch.
//
// Only data fields are read. Malformed chunks are logged and skipped. An
// {"error": {...}} payload or a read failure ends the stream with a final
// event whose Err is set.
func ParseSSEStream(ctx context.Context, body io.Reader, ch chan<- chat.StreamEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		payload, ok := dataField(scanner.Text())
		if !ok {
			continue
		}
		if payload == doneSentinel {
			return
		}

		ev, ok := decodeEvent(payload)
		if !ok {
			continue
		}
		if !send(ctx, ch, ev) || ev.Err != nil {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		send(ctx, ch, chat.StreamEvent{Err: api.NewServerError("SSE stream read error: " + err.Error())})
	}
}

// dataField returns the value of an SSE "data:" line.
func dataField(line string) (string, bool) {
	v, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func decodeEvent(payload string) (chat.StreamEvent, bool) {
	if strings.Contains(payload, `"error"`) {
		var be backendError
		if json.Unmarshal([]byte(payload), &be) == nil && be.Error != nil {
			apiErr := api.NewServerError("backend stream error: " + be.Error.Message)
			apiErr.Code = be.code()
			return chat.StreamEvent{Err: apiErr}, true
		}
	}

	var chunk chat.Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		slog.Warn("skipping malformed SSE chunk",
			"error", err.Error(),
			"data", debug.Truncate(payload, 200),
		)
		return chat.StreamEvent{}, false
	}
	return chat.StreamEvent{Chunk: &chunk}, true
}

func send(ctx context.Context, ch chan<- chat.StreamEvent, ev chat.StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
