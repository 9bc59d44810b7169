package goopenai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/debug"
	"github.com/puppetm4st3r/local-function-calling/pkg/provider"
)

// ProviderName identifies this transport in logs, metrics and config.
const ProviderName = "goopenai"

// Config holds settings for the go-openai transport.
type Config struct {
	// BaseURL of the backend. "/v1" is appended when missing.
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Timeout bounds non-streaming requests. Defaults to 120s.
	Timeout time.Duration
}

// Provider implements provider.Provider on top of go-openai.
type Provider struct {
	client     *openai.Client
	httpClient *http.Client
	timeout    time.Duration
	caps       provider.Capabilities
}

var _ provider.Provider = (*Provider)(nil)

// New creates a go-openai backed provider.
func New(cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}

	// Streaming requests are bounded by their context rather than a client
	// timeout, so the go-openai client gets no timeout of its own.
	httpClient := &http.Client{}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = base
	oc.HTTPClient = httpClient

	return &Provider{
		client:     openai.NewClientWithConfig(oc),
		httpClient: httpClient,
		timeout:    timeout,
		caps:       provider.Capabilities{Streaming: true, Vision: true},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Capabilities returns the declared backend capabilities.
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }

// CreateChatCompletion performs a non-streaming completion.
func (p *Provider) CreateChatCompletion(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	debug.Log("providers", "go-openai chat request", "model", req.Model, "messages", len(req.Messages))

	resp, err := p.client.CreateChatCompletion(ctx, toOpenAIRequest(req, false))
	if err != nil {
		return nil, mapError(err)
	}
	return fromOpenAIResponse(resp), nil
}

// CreateChatCompletionStream performs a streaming completion. The channel
// is closed when the stream ends, fails, or ctx is cancelled.
func (p *Provider) CreateChatCompletionStream(ctx context.Context, req *chat.CompletionRequest) (<-chan chat.StreamEvent, error) {
	debug.Log("providers", "go-openai stream request", "model", req.Model, "messages", len(req.Messages))

	stream, err := p.client.CreateChatCompletionStream(ctx, toOpenAIRequest(req, true))
	if err != nil {
		return nil, mapError(err)
	}

	ch := make(chan chat.StreamEvent, 16)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}

			var ev chat.StreamEvent
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				ev.Err = mapError(err)
			} else {
				ev.Chunk = fromOpenAIChunk(resp)
			}

			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Err != nil {
				return
			}
		}
	}()
	return ch, nil
}

// ListModels returns the models the backend reports.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	models := make([]provider.ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, provider.ModelInfo{
			ID:      m.ID,
			Object:  m.Object,
			Created: m.CreatedAt,
			OwnedBy: m.OwnedBy,
		})
	}
	return models, nil
}

// Close releases idle connections.
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// mapError converts go-openai errors into APIErrors, keeping the same
// status mapping as the plain HTTP transport.
func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewServerError("backend request timed out")
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fromStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return fromStatus(reqErr.HTTPStatusCode, msg)
	}
	return api.NewServerError(fmt.Sprintf("backend connection error: %s", err.Error()))
}

func fromStatus(status int, message string) *api.APIError {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if message == "" {
			message = "invalid request to backend"
		}
		return api.NewInvalidRequestError("", message)
	case status == http.StatusNotFound:
		if message == "" {
			message = "backend resource not found"
		}
		return api.NewNotFoundError(message)
	case status == http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
		return api.NewTooManyRequestsError(message)
	default:
		if message == "" {
			message = fmt.Sprintf("backend error (HTTP %d)", status)
		}
		return api.NewServerError(message)
	}
}
