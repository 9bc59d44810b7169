package completions

import (
	"context"
	"errors"

	"github.com/puppetm4st3r/local-function-calling/pkg/provider"
)

// Client pairs a provider with a facade over it. Chat completions go
// through the facade; every other operation reaches the provider directly.
type Client struct {
	provider provider.Provider
	chat     *Facade
}

// Wrap returns a Client whose chat completions understand tools. Debug
// logging is on unless an option turns it off.
func Wrap(p provider.Provider, opts ...Option) (*Client, error) {
	if p == nil {
		return nil, errors.New("completions: provider must not be nil")
	}
	f, err := New(p, append([]Option{WithDebug(true)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Client{provider: p, chat: f}, nil
}

// Chat returns the completions facade.
func (c *Client) Chat() *Facade { return c.chat }

// Provider returns the wrapped provider.
func (c *Client) Provider() provider.Provider { return c.provider }

// ListModels forwards to the provider.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return c.provider.ListModels(ctx)
}

// Close releases the provider.
func (c *Client) Close() error {
	return c.provider.Close()
}
