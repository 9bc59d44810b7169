package transport

import (
	"context"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/completions"
)

// FacadeCompleter serves chat completions through a completions facade.
type FacadeCompleter struct {
	facade *completions.Facade
}

var _ ChatCompleter = (*FacadeCompleter)(nil)

// NewFacadeCompleter returns a ChatCompleter backed by f.
func NewFacadeCompleter(f *completions.Facade) *FacadeCompleter {
	return &FacadeCompleter{facade: f}
}

// CreateChatCompletion runs the facade and writes its result. A stream is
// copied chunk by chunk; an error event ends it with that error.
func (c *FacadeCompleter) CreateChatCompletion(ctx context.Context, req *chat.CompletionRequest, w ResponseWriter) error {
	res, err := c.facade.Create(ctx, req)
	if err != nil {
		return err
	}

	if !res.IsStream() {
		return w.WriteCompletion(ctx, res.Completion)
	}

	for ev := range res.Stream {
		if ev.Err != nil {
			return ev.Err
		}
		if ev.Chunk == nil {
			continue
		}
		if err := w.WriteChunk(ctx, ev.Chunk); err != nil {
			return err
		}
	}
	return ctx.Err()
}
