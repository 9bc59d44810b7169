package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

const mockModel = "mock-model"

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chat.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid request","type":"invalid_request_error"}}`))
		return
	}

	model := req.Model
	if model == "" {
		model = mockModel
	}
	text := reply(&req)

	if req.StreamOr(false) {
		handleStreaming(w, model, text)
		return
	}

	resp := chat.Completion{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []chat.Choice{{
			Message:      chat.Message{Role: chat.RoleAssistant, Content: text},
			FinishReason: "stop",
		}},
		Usage: &chat.Usage{PromptTokens: 10, CompletionTokens: len(text) / 4, TotalTokens: 10 + len(text)/4},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleStreaming sends text in chunks of up to eight bytes, followed by
// a finish chunk and [DONE].
func handleStreaming(w http.ResponseWriter, model, text string) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeChunk(w, model, chat.Delta{Role: chat.RoleAssistant}, nil)
	for _, piece := range split(text, 8) {
		writeChunk(w, model, chat.Delta{Content: &piece}, nil)
		rc.Flush()
	}
	stop := "stop"
	writeChunk(w, model, chat.Delta{}, &stop)
	fmt.Fprint(w, "data: [DONE]\n\n")
	rc.Flush()
}

func writeChunk(w http.ResponseWriter, model string, delta chat.Delta, finish *string) {
	data, _ := json.Marshal(chat.Chunk{
		ID:      "chatcmpl-mock-stream",
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []chat.ChunkChoice{{Delta: delta, FinishReason: finish}},
	})
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// split cuts s into pieces of at most n bytes without splitting runes.
func split(s string, n int) []string {
	var out []string
	for len(s) > 0 {
		end := min(n, len(s))
		for end < len(s) && !utf8.RuneStart(s[end]) {
			end++
		}
		out = append(out, s[:end])
		s = s[end:]
	}
	return out
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chat.ModelList{
		Object: "list",
		Data:   []chat.Model{{ID: mockModel, Object: "model", OwnedBy: "lfc-mock"}},
	})
}
