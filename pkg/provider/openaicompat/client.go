package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/debug"
	"github.com/puppetm4st3r/local-function-calling/pkg/provider"
)

// ProviderName identifies this transport in logs, metrics and config.
const ProviderName = "openaicompat"

const (
	defaultTimeout  = 120 * time.Second
	chatPath        = "/v1/chat/completions"
	modelsPath      = "/v1/models"
	streamQueueSize = 16
)

// Client talks to an OpenAI-compatible Chat Completions server over plain
// HTTP. It implements provider.Provider.
type Client struct {
	client       *http.Client
	streamClient *http.Client
	baseURL      string
	apiKey       string
	caps         provider.Capabilities

	// ModelMapper, when set, rewrites the model name on the way out.
	ModelMapper func(string) string
}

var _ provider.Provider = (*Client)(nil)

// NewClient returns a client for baseURL, which may or may not end in /v1.
// A zero timeout means two minutes. Streams are bounded by their context
// only. Content parts of every type are forwarded; the backend decides what
// it accepts.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport
	return &Client{
		client:       &http.Client{Transport: transport, Timeout: timeout},
		streamClient: &http.Client{Transport: transport},
		baseURL:      strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1"),
		apiKey:       apiKey,
		caps:         provider.Capabilities{Streaming: true, Vision: true, Audio: true},
	}
}

// WithCapabilities overrides the declared capabilities.
func (c *Client) WithCapabilities(caps provider.Capabilities) *Client {
	c.caps = caps
	return c
}

func (c *Client) Name() string                        { return ProviderName }
func (c *Client) Capabilities() provider.Capabilities { return c.caps }

// CreateChatCompletion forwards req with stream pinned to false.
func (c *Client) CreateChatCompletion(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	out := PrepareRequest(req, false, c.ModelMapper)
	resp, err := c.do(ctx, c.client, http.MethodPost, chatPath, out)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var completion chat.Completion
	if err := decode(resp.Body, &completion, "chat completion"); err != nil {
		return nil, err
	}
	NormalizeCompletion(&completion)

	debug.Log("providers", "chat completion received",
		"model", completion.Model,
		"choices", len(completion.Choices),
	)
	return &completion, nil
}

// CreateChatCompletionStream forwards req with stream pinned to true. The
// returned channel is closed when the stream ends for any reason.
func (c *Client) CreateChatCompletionStream(ctx context.Context, req *chat.CompletionRequest) (<-chan chat.StreamEvent, error) {
	out := PrepareRequest(req, true, c.ModelMapper)
	resp, err := c.do(ctx, c.streamClient, http.MethodPost, chatPath, out)
	if err != nil {
		return nil, err
	}

	ch := make(chan chat.StreamEvent, streamQueueSize)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		ParseSSEStream(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// ListModels queries /v1/models.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	resp, err := c.do(ctx, c.client, http.MethodGet, modelsPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list chat.ModelList
	if err := decode(resp.Body, &list, "models"); err != nil {
		return nil, err
	}
	models := make([]provider.ModelInfo, len(list.Data))
	for i, m := range list.Data {
		models[i] = ToModelInfo(m)
	}
	return models, nil
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// do sends one request and returns the response when its status is 2xx.
// Any other status is consumed and mapped to an APIError.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, payload *chat.CompletionRequest) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, api.NewServerError("failed to marshal request: " + err.Error())
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, api.NewServerError("failed to create HTTP request: " + err.Error())
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		if payload.Stream != nil && *payload.Stream {
			req.Header.Set("Accept", "text/event-stream")
		}
		debug.Log("providers", "sending chat request",
			"url", req.URL.String(),
			"model", payload.Model,
			"messages", len(payload.Messages),
			"tools", len(payload.Tools),
		)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func decode(r io.Reader, v any, what string) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return api.NewServerError(fmt.Sprintf("failed to parse backend %s response: %v", what, err))
	}
	return nil
}
