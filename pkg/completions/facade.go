package completions

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/debug"
	"github.com/puppetm4st3r/local-function-calling/pkg/funccall"
	"github.com/puppetm4st3r/local-function-calling/pkg/observability"
	"github.com/puppetm4st3r/local-function-calling/pkg/provider"
)

// Transport is the chat-completion backend the facade forwards to.
// provider.Provider satisfies it.
type Transport interface {
	CreateChatCompletion(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error)
	CreateChatCompletionStream(ctx context.Context, req *chat.CompletionRequest) (<-chan chat.StreamEvent, error)
}

// Facade exposes the chat-completions operation on top of a Transport.
// It holds no mutable state and is safe for concurrent use.
type Facade struct {
	transport     Transport
	logger        *slog.Logger
	name          string
	debug         bool
	streamDefault bool
	stripTools    bool
	defaultModel  string
}

// New creates a Facade. The transport must not be nil.
func New(t Transport, opts ...Option) (*Facade, error) {
	if t == nil {
		return nil, errors.New("completions: transport must not be nil")
	}

	f := &Facade{
		transport:     t,
		logger:        slog.Default(),
		name:          "transport",
		streamDefault: true,
	}
	if named, ok := t.(interface{ Name() string }); ok && named.Name() != "" {
		f.name = named.Name()
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Create performs one chat completion.
//
// With tools and streaming off, the last user message of req is rewritten
// in place and the result is a completion carrying the parsed tool calls,
// or the plain reply when there are none. With tools and streaming on
// (including an absent stream flag while the stream default is true) a
// configuration error is returned and the transport is not called.
// Requests without tools are forwarded unchanged and the transport's
// completion or stream is returned as is.
//
// The message rewrite is the only change made to req. The default model,
// when one is configured, is filled in on a copy.
//
// Transport errors are returned unchanged.
func (f *Facade) Create(ctx context.Context, req *chat.CompletionRequest) (*Result, error) {
	if req == nil {
		return nil, api.NewInvalidRequestError("", "request must not be nil")
	}
	if req.Model == "" && f.defaultModel != "" {
		withModel := *req
		withModel.Model = f.defaultModel
		req = &withModel
	}

	stream := req.StreamOr(f.streamDefault)

	if req.HasTools() && stream {
		observability.RecordCompletion(observability.ModeRejected)
		return nil, api.NewConfigurationError("stream", "stream_with_tools",
			"streaming is not supported when tools are provided; set stream to false")
	}

	if req.HasTools() {
		completion, err := f.intercept(ctx, req)
		if err != nil {
			return nil, err
		}
		observability.RecordCompletion(observability.ModeIntercepted)
		return &Result{Completion: completion}, nil
	}

	result, err := f.passthrough(ctx, req, stream)
	if err != nil {
		return nil, err
	}
	observability.RecordCompletion(observability.ModePassthrough)
	return result, nil
}

// intercept runs the function-call protocol for a non-streaming request
// with tools.
func (f *Facade) intercept(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	if c, ok := f.transport.(interface{ Capabilities() provider.Capabilities }); ok {
		if apiErr := provider.ValidateCapabilities(c.Capabilities(), req, false); apiErr != nil {
			observability.RecordCompletion(observability.ModeRejected)
			return nil, apiErr
		}
	}

	toolsJSON, err := funccall.EncodeTools(req.Tools)
	if err != nil {
		return nil, api.NewInvalidRequestError("tools", err.Error())
	}
	funccall.InsertFunctionAndQuestion(req.Messages, toolsJSON)
	f.dump("augmented messages", "messages", req.Messages)

	out := req
	if f.stripTools {
		stripped := *req
		stripped.Tools = nil
		stripped.ToolChoice = nil
		if _, ok := req.Extra["parallel_tool_calls"]; ok {
			stripped.Extra = maps.Clone(req.Extra)
			delete(stripped.Extra, "parallel_tool_calls")
		}
		out = &stripped
	}

	resp, err := f.call(ctx, out)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, api.NewServerError("backend returned a completion without choices")
	}

	raw := chat.ContentText(resp.Choices[0].Message.Content)
	debug.Raw("completions", raw)

	parsed := funccall.ParseCalls(raw)
	names := make([]string, len(parsed.Calls))
	for i, call := range parsed.Calls {
		names[i] = call.Name
	}
	observability.RecordDecoded(names, parsed.Dropped)
	if parsed.Dropped > 0 {
		debug.Log("funccall", "dropped malformed function segments", "count", parsed.Dropped)
	}

	f.logger.Warn("token usage is not captured for function-calling completions",
		"provider", f.name,
		"model", resp.Model,
	)

	completion := funccall.BuildCompletion(raw, parsed.Calls, funccall.Metadata{
		ID:      resp.ID,
		Created: resp.Created,
		Model:   resp.Model,
	})
	f.dump("adapted response", "completion", completion)
	return completion, nil
}

func (f *Facade) passthrough(ctx context.Context, req *chat.CompletionRequest, stream bool) (*Result, error) {
	if !stream {
		resp, err := f.call(ctx, req)
		if err != nil {
			return nil, err
		}
		f.dump("passthrough response", "completion", resp)
		return &Result{Completion: resp}, nil
	}

	start := time.Now()
	ch, err := f.transport.CreateChatCompletionStream(ctx, req)
	f.observe(req.Model, start, err)
	if err != nil {
		return nil, err
	}
	return &Result{Stream: ch}, nil
}

// call performs the non-streaming transport call and records its outcome.
func (f *Facade) call(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	start := time.Now()
	resp, err := f.transport.CreateChatCompletion(ctx, req)
	f.observe(req.Model, start, err)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, api.NewServerError("backend returned an empty completion")
	}
	return resp, nil
}

func (f *Facade) observe(model string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.ObserveProvider(f.name, model, status, start)
}

// dump logs v as JSON, at INFO when debug mode is on and through the
// "completions" debug category otherwise.
func (f *Facade) dump(msg, key string, v any) {
	if !f.debug {
		debug.JSON("completions", msg, key, v)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		f.logger.Info(msg, key+"_error", err.Error())
		return
	}
	f.logger.Info(msg, key, string(data))
}
