package completions

import (
	"context"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

// Result is the outcome of Create. Exactly one of Completion and Stream is
// set.
type Result struct {
	Completion *chat.Completion
	Stream     <-chan chat.StreamEvent
}

// IsStream reports whether the result is a stream.
func (r *Result) IsStream() bool {
	return r.Stream != nil
}

// Outcome is delivered by CreateAsync.
type Outcome struct {
	Result *Result
	Err    error
}

// CreateAsync runs Create in its own goroutine and delivers the single
// outcome on the returned channel, which is then closed. The contract is
// the same as Create; cancelling ctx cancels the transport call.
func (f *Facade) CreateAsync(ctx context.Context, req *chat.CompletionRequest) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, err := f.Create(ctx, req)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}
