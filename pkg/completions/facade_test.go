package completions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/observability"
	"github.com/puppetm4st3r/local-function-calling/pkg/provider"
)

// fakeTransport records requests and returns canned replies.
type fakeTransport struct {
	mu         sync.Mutex
	completion *chat.Completion
	stream     <-chan chat.StreamEvent
	err        error

	syncCalls   []*chat.CompletionRequest
	streamCalls []*chat.CompletionRequest
}

func (f *fakeTransport) CreateChatCompletion(_ context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls = append(f.syncCalls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.completion, nil
}

func (f *fakeTransport) CreateChatCompletionStream(_ context.Context, req *chat.CompletionRequest) (<-chan chat.StreamEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamCalls = append(f.streamCalls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.syncCalls) + len(f.streamCalls)
}

// fakeProvider adds the provider.Provider surface to fakeTransport.
type fakeProvider struct {
	fakeTransport
	caps   provider.Capabilities
	models []provider.ModelInfo
	closed bool
}

func (p *fakeProvider) Name() string                        { return "fake" }
func (p *fakeProvider) Capabilities() provider.Capabilities { return p.caps }
func (p *fakeProvider) ListModels(context.Context) ([]provider.ModelInfo, error) {
	return p.models, nil
}
func (p *fakeProvider) Close() error {
	p.closed = true
	return nil
}

func textCompletion(text string) *chat.Completion {
	return &chat.Completion{
		ID:      "chatcmpl-upstream",
		Object:  chat.ObjectChatCompletion,
		Created: 1700000000,
		Model:   "qwen",
		Choices: []chat.Choice{{
			Message:      chat.Message{Role: chat.RoleAssistant, Content: text},
			FinishReason: chat.FinishReasonStop,
		}},
		Usage: &chat.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func weatherTools() []chat.Tool {
	return []chat.Tool{{
		Type: chat.ToolTypeFunction,
		Function: chat.FunctionDef{
			Name:       "get_weather",
			Parameters: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`),
		},
	}}
}

func toolRequest(stream *bool) *chat.CompletionRequest {
	return &chat.CompletionRequest{
		Model: "qwen",
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: "be brief"},
			{Role: chat.RoleUser, Content: "Weather in Paris?"},
		},
		Tools:  weatherTools(),
		Stream: stream,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newFacade(t *testing.T, tr Transport, opts ...Option) *Facade {
	t.Helper()
	f, err := New(tr, append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func completionsCount(t *testing.T, mode string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := observability.CompletionsTotal.GetMetricWithLabelValues(mode)
	if err != nil {
		t.Fatalf("getting metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNew_NilTransport(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil transport")
	}
}

func TestCreate_StreamWithToolsRejected(t *testing.T) {
	tests := []struct {
		name   string
		stream *bool
		opts   []Option
	}{
		{name: "explicit stream", stream: chat.Bool(true)},
		{name: "absent flag with default stream", stream: nil},
		{name: "explicit stream overrides default", stream: chat.Bool(true), opts: []Option{WithStreamDefault(false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{completion: textCompletion("hi")}
			f := newFacade(t, tr, tt.opts...)
			before := completionsCount(t, observability.ModeRejected)

			req := toolRequest(tt.stream)
			res, err := f.Create(context.Background(), req)
			if res != nil {
				t.Error("expected nil result")
			}
			var apiErr *api.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *api.APIError, got %T: %v", err, err)
			}
			if apiErr.Type != api.ErrorTypeConfiguration || apiErr.Param != "stream" {
				t.Errorf("error = %+v, want configuration_error on stream", apiErr)
			}
			if tr.calls() != 0 {
				t.Errorf("transport called %d times, want 0", tr.calls())
			}
			if got := chat.ContentText(req.Messages[1].Content); got != "Weather in Paris?" {
				t.Errorf("messages modified on rejection: %q", got)
			}
			if after := completionsCount(t, observability.ModeRejected); after-before != 1 {
				t.Errorf("rejected count delta = %f, want 1", after-before)
			}
		})
	}
}

func TestCreate_InterceptsToolCalls(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("<<function>>get_weather(city='Paris', days=3)")}
	var logs bytes.Buffer
	f, err := New(tr, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	if err != nil {
		t.Fatal(err)
	}
	before := completionsCount(t, observability.ModeIntercepted)

	req := toolRequest(chat.Bool(false))
	res, err := f.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsStream() || res.Completion == nil {
		t.Fatal("expected a completion result")
	}

	// The caller's user message is rewritten in place.
	content := chat.ContentText(req.Messages[1].Content)
	if !strings.HasPrefix(content, "<<function>>[") || !strings.HasSuffix(content, "\n<<question>>Weather in Paris?") {
		t.Errorf("user message not rewritten: %q", content)
	}
	if chat.ContentText(req.Messages[0].Content) != "be brief" {
		t.Error("system message must not change")
	}

	if len(tr.syncCalls) != 1 || len(tr.streamCalls) != 0 {
		t.Fatalf("transport calls sync=%d stream=%d, want 1/0", len(tr.syncCalls), len(tr.streamCalls))
	}
	if len(tr.syncCalls[0].Tools) != 1 {
		t.Error("tools should be forwarded by default")
	}

	c := res.Completion
	if c.ID != "chatcmpl-upstream" || c.Created != 1700000000 || c.Model != "qwen" {
		t.Errorf("upstream metadata not forwarded: id=%q created=%d model=%q", c.ID, c.Created, c.Model)
	}
	if c.Usage == nil || *c.Usage != (chat.Usage{}) {
		t.Errorf("usage = %+v, want zero", c.Usage)
	}
	if len(c.Choices) != 1 {
		t.Fatalf("choices = %d, want 1", len(c.Choices))
	}
	choice := c.Choices[0]
	if choice.FinishReason != chat.FinishReasonToolCalls {
		t.Errorf("finish_reason = %q", choice.FinishReason)
	}
	if choice.Message.Content != "" {
		t.Errorf("content = %v, want empty", choice.Message.Content)
	}
	if len(choice.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(choice.Message.ToolCalls))
	}
	tc := choice.Message.ToolCalls[0]
	if tc.ID != "1" || tc.Type != chat.ToolTypeFunction || tc.Function.Name != "get_weather" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Function.Arguments != `{"city":"Paris","days":3}` {
		t.Errorf("arguments = %s", tc.Function.Arguments)
	}

	if !strings.Contains(logs.String(), "token usage is not captured") {
		t.Errorf("expected usage warning, logs: %s", logs.String())
	}
	if after := completionsCount(t, observability.ModeIntercepted); after-before != 1 {
		t.Errorf("intercepted count delta = %f, want 1", after-before)
	}
}

func TestCreate_InterceptPlainReply(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("It is sunny.")}
	f := newFacade(t, tr, WithStreamDefault(false))

	res, err := f.Create(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	choice := res.Completion.Choices[0]
	if choice.FinishReason != chat.FinishReasonStop {
		t.Errorf("finish_reason = %q, want stop", choice.FinishReason)
	}
	if choice.Message.Content != "It is sunny." {
		t.Errorf("content = %v", choice.Message.Content)
	}
	if len(choice.Message.ToolCalls) != 0 {
		t.Errorf("unexpected tool calls: %+v", choice.Message.ToolCalls)
	}
}

func TestCreate_InterceptMultipleCalls(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion(`<<function>>a(x=1)<<function>>broken<<function>>b(y="two")`)}
	f := newFacade(t, tr)

	res, err := f.Create(context.Background(), toolRequest(chat.Bool(false)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := res.Completion.Choices[0].Message.ToolCalls
	if len(calls) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(calls))
	}
	if calls[0].Function.Name != "a" || calls[1].Function.Name != "b" {
		t.Errorf("call order = %s, %s", calls[0].Function.Name, calls[1].Function.Name)
	}
	if calls[0].ID != calls[1].ID {
		t.Error("all calls share the same id")
	}
}

func TestCreate_InterceptContentParts(t *testing.T) {
	tr := &fakeTransport{completion: &chat.Completion{
		Choices: []chat.Choice{{Message: chat.Message{Content: []any{
			map[string]any{"type": "text", "text": "<<function>>f(a=true)"},
		}}}},
	}}
	f := newFacade(t, tr)

	res, err := f.Create(context.Background(), toolRequest(chat.Bool(false)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := res.Completion
	if c.ID != "chatcmpl-default-id" || c.Model != "default-model" {
		t.Errorf("defaults not applied: id=%q model=%q", c.ID, c.Model)
	}
	if got := c.Choices[0].Message.ToolCalls[0].Function.Arguments; got != `{"a":true}` {
		t.Errorf("arguments = %s", got)
	}
}

func TestCreate_StripTools(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("ok")}
	f := newFacade(t, tr, WithStripTools(true))

	req := toolRequest(chat.Bool(false))
	req.ToolChoice = "auto"
	if _, err := f.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := tr.syncCalls[0]
	if sent.Tools != nil || sent.ToolChoice != nil {
		t.Errorf("tools forwarded despite stripping: %+v", sent.Tools)
	}
	if len(req.Tools) != 1 || req.ToolChoice != "auto" {
		t.Error("caller's tools must be left alone")
	}
	if !strings.HasPrefix(chat.ContentText(sent.Messages[1].Content), "<<function>>") {
		t.Error("forwarded messages should carry the encoded tools")
	}
}

func TestCreate_NoUserMessage(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("nothing to do")}
	f := newFacade(t, tr)

	req := toolRequest(chat.Bool(false))
	req.Messages = []chat.Message{{Role: chat.RoleSystem, Content: "only system"}}
	res, err := f.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chat.ContentText(req.Messages[0].Content) != "only system" {
		t.Error("system message must not be rewritten")
	}
	if res.Completion.Choices[0].Message.Content != "nothing to do" {
		t.Errorf("content = %v", res.Completion.Choices[0].Message.Content)
	}
}

func TestCreate_EmptyChoices(t *testing.T) {
	tr := &fakeTransport{completion: &chat.Completion{ID: "x"}}
	f := newFacade(t, tr)

	_, err := f.Create(context.Background(), toolRequest(chat.Bool(false)))
	if !api.IsType(err, api.ErrorTypeServerError) {
		t.Fatalf("expected server_error, got %v", err)
	}
}

func TestCreate_TransportErrorPropagates(t *testing.T) {
	sentinel := errors.New("backend exploded")

	t.Run("intercepted", func(t *testing.T) {
		f := newFacade(t, &fakeTransport{err: sentinel})
		_, err := f.Create(context.Background(), toolRequest(chat.Bool(false)))
		if !errors.Is(err, sentinel) {
			t.Errorf("error = %v, want sentinel", err)
		}
	})

	t.Run("passthrough", func(t *testing.T) {
		f := newFacade(t, &fakeTransport{err: sentinel})
		_, err := f.Create(context.Background(), &chat.CompletionRequest{Model: "m", Stream: chat.Bool(true)})
		if !errors.Is(err, sentinel) {
			t.Errorf("error = %v, want sentinel", err)
		}
	})
}

func TestCreate_PassthroughSync(t *testing.T) {
	upstream := textCompletion("<<function>>not_parsed(a=1)")
	tr := &fakeTransport{completion: upstream}
	f := newFacade(t, tr)
	before := completionsCount(t, observability.ModePassthrough)

	req := &chat.CompletionRequest{
		Model:    "qwen",
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "hello"}},
		Stream:   chat.Bool(false),
	}
	res, err := f.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Completion != upstream {
		t.Error("passthrough completion must be returned verbatim")
	}
	if tr.syncCalls[0] != req {
		t.Error("passthrough request must be forwarded verbatim")
	}
	if chat.ContentText(req.Messages[0].Content) != "hello" {
		t.Error("passthrough must not rewrite messages")
	}
	if after := completionsCount(t, observability.ModePassthrough); after-before != 1 {
		t.Errorf("passthrough count delta = %f, want 1", after-before)
	}
}

func TestCreate_PassthroughStream(t *testing.T) {
	ch := make(chan chat.StreamEvent)
	close(ch)
	tr := &fakeTransport{stream: ch}
	f := newFacade(t, tr)

	// Absent stream flag resolves to the default, which is streaming.
	res, err := f.Create(context.Background(), &chat.CompletionRequest{
		Model:    "qwen",
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsStream() || res.Stream != (<-chan chat.StreamEvent)(ch) {
		t.Error("expected the transport's stream to be returned")
	}
	if len(tr.streamCalls) != 1 || len(tr.syncCalls) != 0 {
		t.Errorf("transport calls sync=%d stream=%d, want 0/1", len(tr.syncCalls), len(tr.streamCalls))
	}
}

func TestCreate_DefaultModel(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("ok")}
	f := newFacade(t, tr, WithDefaultModel("fallback"))

	req := &chat.CompletionRequest{Stream: chat.Bool(false)}
	if _, err := f.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.syncCalls[0].Model != "fallback" {
		t.Errorf("model = %q, want fallback", tr.syncCalls[0].Model)
	}
}

func TestCreate_DefaultModelLeavesCallerRequest(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("<<function>>get_weather(city='Oslo')")}
	f := newFacade(t, tr, WithDefaultModel("fallback"))

	req := toolRequest(chat.Bool(false))
	req.Model = ""
	if _, err := f.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Model != "" {
		t.Errorf("caller's model = %q, want it left empty", req.Model)
	}
	if tr.syncCalls[0].Model != "fallback" {
		t.Errorf("forwarded model = %q, want fallback", tr.syncCalls[0].Model)
	}
	if !strings.HasPrefix(chat.ContentText(req.Messages[1].Content), "<<function>>") {
		t.Error("the user message is still rewritten in the caller's slice")
	}
}

func imageMessage() chat.Message {
	return chat.Message{Role: chat.RoleUser, Content: []any{
		map[string]any{"type": "text", "text": "what is this"},
		map[string]any{"type": "image_url", "image_url": map[string]any{"url": "https://example.com/cat.png"}},
	}}
}

func TestCreate_PassthroughIgnoresCapabilities(t *testing.T) {
	tests := []struct {
		name   string
		stream bool
	}{
		{"sync", false},
		{"stream", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan chat.StreamEvent)
			close(ch)
			p := &fakeProvider{
				fakeTransport: fakeTransport{completion: textCompletion("a cat"), stream: ch},
				caps:          provider.Capabilities{SupportedModels: []string{"other"}},
			}
			f := newFacade(t, p)

			req := &chat.CompletionRequest{
				Model:    "qwen",
				Messages: []chat.Message{imageMessage()},
				Stream:   chat.Bool(tt.stream),
			}
			if _, err := f.Create(context.Background(), req); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.calls() != 1 {
				t.Errorf("transport calls = %d, want 1", p.calls())
			}
		})
	}
}

func TestCreate_InterceptChecksCapabilities(t *testing.T) {
	p := &fakeProvider{caps: provider.Capabilities{Streaming: true, SupportedModels: []string{"other"}}}
	f := newFacade(t, p)

	_, err := f.Create(context.Background(), toolRequest(chat.Bool(false)))
	if !api.IsType(err, api.ErrorTypeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
	if p.calls() != 0 {
		t.Error("transport must not be called")
	}
	if f.name != "fake" {
		t.Errorf("name = %q, want provider name", f.name)
	}
}

func TestCreate_InterceptKeepsImageParts(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("a cat")}
	f := newFacade(t, tr)

	req := toolRequest(chat.Bool(false))
	req.Messages = []chat.Message{imageMessage()}
	if _, err := f.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parts, ok := tr.syncCalls[0].Messages[0].Content.([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("content = %#v, want text and image parts", tr.syncCalls[0].Messages[0].Content)
	}
	if parts[1].(map[string]any)["type"] != "image_url" {
		t.Errorf("second part = %#v, want the image", parts[1])
	}
}

func TestCreate_StripToolsDropsParallelFlag(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("ok")}
	f := newFacade(t, tr, WithStripTools(true))

	req := toolRequest(chat.Bool(false))
	req.Extra = map[string]json.RawMessage{
		"parallel_tool_calls": json.RawMessage("false"),
		"logprobs":            json.RawMessage("true"),
	}
	if _, err := f.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := tr.syncCalls[0].Extra
	if _, ok := sent["parallel_tool_calls"]; ok || string(sent["logprobs"]) != "true" {
		t.Errorf("forwarded extras = %v, want only logprobs", sent)
	}
	if len(req.Extra) != 2 {
		t.Error("caller's extras must be left alone")
	}
}

func TestCreate_NilRequest(t *testing.T) {
	f := newFacade(t, &fakeTransport{})
	if _, err := f.Create(context.Background(), nil); !api.IsType(err, api.ErrorTypeInvalidRequest) {
		t.Fatalf("expected invalid_request, got %v", err)
	}
}

func TestCreate_DebugLogging(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("<<function>>f(a=1)")}
	var logs bytes.Buffer
	f, err := New(tr, WithDebug(true), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	if err != nil {
		t.Fatal(err)
	}

	res, err := f.Create(context.Background(), toolRequest(chat.Bool(false)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, "augmented messages") || !strings.Contains(out, "adapted response") {
		t.Errorf("debug output missing: %s", out)
	}
	if res.Completion.Choices[0].Message.ToolCalls[0].Function.Name != "f" {
		t.Error("debug mode must not change the result")
	}
}

func TestCreateAsync(t *testing.T) {
	tr := &fakeTransport{completion: textCompletion("<<function>>f(a=1)")}
	f := newFacade(t, tr)

	outcome, ok := <-f.CreateAsync(context.Background(), toolRequest(chat.Bool(false)))
	if !ok {
		t.Fatal("channel closed without an outcome")
	}
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.Result.Completion.Choices[0].FinishReason != chat.FinishReasonToolCalls {
		t.Error("async result should match the sync contract")
	}

	outcome = <-f.CreateAsync(context.Background(), toolRequest(chat.Bool(true)))
	if !api.IsType(outcome.Err, api.ErrorTypeConfiguration) {
		t.Errorf("expected configuration_error, got %v", outcome.Err)
	}
}
