package provider

import (
	"context"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

// Provider is a chat-completion backend. It satisfies the transport the
// completions facade consumes and adds the operations a gateway needs to
// pass through unchanged.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	Name() string
	Capabilities() Capabilities

	CreateChatCompletion(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error)

	// CreateChatCompletionStream closes the returned channel when the
	// stream ends. A failure arrives as a final event with Err set.
	CreateChatCompletionStream(ctx context.Context, req *chat.CompletionRequest) (<-chan chat.StreamEvent, error)

	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases idle connections.
	Close() error
}

// ModelInfo is one entry of GET /v1/models.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	Created int64  `json:"created,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}
