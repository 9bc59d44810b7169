package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

// Recovery turns a panic in the completer into a server error so one bad
// request does not take the gateway down.
func Recovery() Middleware {
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *chat.CompletionRequest, w ResponseWriter) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				slog.ErrorContext(ctx, "recovered panic in completer",
					"request_id", RequestIDFromContext(ctx),
					"model", req.Model,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				err = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
			}()
			return next.CreateChatCompletion(ctx, req, w)
		})
	}
}
