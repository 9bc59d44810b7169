package transport

import (
	"context"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/provider"
)

// ChatCompleter handles the chat-completions operation. The implementation
// receives a request and writes the result (chunks or a complete
// completion) to the ResponseWriter.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req *chat.CompletionRequest, w ResponseWriter) error
}

// ChatCompleterFunc is an adapter that allows using an ordinary function
// as a ChatCompleter.
type ChatCompleterFunc func(ctx context.Context, req *chat.CompletionRequest, w ResponseWriter) error

// CreateChatCompletion calls f(ctx, req, w).
func (f ChatCompleterFunc) CreateChatCompletion(ctx context.Context, req *chat.CompletionRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}

// ModelLister returns the models served behind the gateway.
// provider.Provider satisfies it.
type ModelLister interface {
	ListModels(ctx context.Context) ([]provider.ModelInfo, error)
}

// ResponseWriter abstracts streaming and non-streaming output for the handler.
//
// WriteChunk and WriteCompletion are mutually exclusive on a single writer
// instance. Calling one after the other returns an error.
type ResponseWriter interface {
	// WriteChunk sends a single streaming chunk.
	WriteChunk(ctx context.Context, chunk *chat.Chunk) error

	// WriteCompletion sends a complete non-streaming completion.
	WriteCompletion(ctx context.Context, c *chat.Completion) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}
