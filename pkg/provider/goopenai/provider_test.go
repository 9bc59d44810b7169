package goopenai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

func TestCreateChatCompletion(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-7","object":"chat.completion","created":42,"model":"gpt","choices":[{"index":0,"message":{"role":"assistant","content":"<<function>>f(a=1)"},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":3,"total_tokens":7}}`)
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second})
	temp := 0.5
	resp, err := p.CreateChatCompletion(context.Background(), &chat.CompletionRequest{
		Model:       "gpt",
		Temperature: &temp,
		Messages:    []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
		Tools: []chat.Tool{{
			Type:     chat.ToolTypeFunction,
			Function: chat.FunctionDef{Name: "f", Parameters: json.RawMessage(`{"type":"object"}`)},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if body["model"] != "gpt" {
		t.Errorf("forwarded model = %v", body["model"])
	}
	tools, _ := body["tools"].([]any)
	if len(tools) != 1 {
		t.Errorf("forwarded tools = %v, want 1 tool", body["tools"])
	}

	if resp.ID != "chatcmpl-7" || resp.Created != 42 || resp.Model != "gpt" {
		t.Errorf("metadata not preserved: %+v", resp)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v, want total 7", resp.Usage)
	}
	if got := chat.ContentText(resp.Choices[0].Message.Content); got != "<<function>>f(a=1)" {
		t.Errorf("content = %q", got)
	}
	if resp.Choices[0].FinishReason != chat.FinishReasonStop {
		t.Errorf("finish_reason = %q", resp.Choices[0].FinishReason)
	}
}

func TestCreateChatCompletion_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType api.ErrorType
	}{
		{"bad request", http.StatusBadRequest, api.ErrorTypeInvalidRequest},
		{"not found", http.StatusNotFound, api.ErrorTypeNotFound},
		{"rate limited", http.StatusTooManyRequests, api.ErrorTypeTooManyRequests},
		{"server error", http.StatusInternalServerError, api.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope","type":"test"}}`)
			}))
			defer srv.Close()

			p := New(Config{BaseURL: srv.URL + "/v1"})
			_, err := p.CreateChatCompletion(context.Background(), &chat.CompletionRequest{
				Model:    "gpt",
				Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
			})
			if !api.IsType(err, tt.wantType) {
				t.Fatalf("error = %v, want type %q", err, tt.wantType)
			}
		})
	}
}

func TestCreateChatCompletionStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"c\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"c\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL})
	ch, err := p.CreateChatCompletionStream(context.Background(), &chat.CompletionRequest{
		Model:    "gpt",
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var text string
	var finish *string
	for ev := range ch {
		if ev.Err != nil {
			t.Fatalf("stream error: %v", ev.Err)
		}
		for _, c := range ev.Chunk.Choices {
			if c.Delta.Content != nil {
				text += *c.Delta.Content
			}
			if c.FinishReason != nil {
				finish = c.FinishReason
			}
		}
	}
	if text != "Hello" {
		t.Errorf("streamed text = %q, want Hello", text)
	}
	if finish == nil || *finish != chat.FinishReasonStop {
		t.Errorf("finish_reason = %v, want stop", finish)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt","object":"model","created":1,"owned_by":"me"}]}`)
	}))
	defer srv.Close()

	models, err := New(Config{BaseURL: srv.URL}).ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "gpt" || models[0].OwnedBy != "me" || models[0].Created != 1 {
		t.Errorf("models = %+v", models)
	}
}

func TestToOpenAIMessage_ContentParts(t *testing.T) {
	msg := toOpenAIMessage(chat.Message{
		Role: chat.RoleUser,
		Content: []any{
			map[string]any{"type": "text", "text": "describe"},
			map[string]any{"type": "image_url", "image_url": map[string]any{"url": "https://example.com/a.png"}},
			map[string]any{"type": "unknown"},
		},
	})
	if msg.Content != "" {
		t.Errorf("Content = %q, want empty when parts are used", msg.Content)
	}
	if len(msg.MultiContent) != 2 {
		t.Fatalf("MultiContent len = %d, want 2", len(msg.MultiContent))
	}
	if msg.MultiContent[1].ImageURL == nil || msg.MultiContent[1].ImageURL.URL != "https://example.com/a.png" {
		t.Errorf("image part = %+v", msg.MultiContent[1])
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{})
	if p.Name() != ProviderName {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.timeout != 120*time.Second {
		t.Errorf("timeout = %v, want 120s", p.timeout)
	}
	if !p.Capabilities().Streaming {
		t.Error("expected streaming capability")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
