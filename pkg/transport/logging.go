package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

// Logging emits one entry per completion. Requests with tools are logged
// with mode "function_calling", the rest with "passthrough". Failures the
// caller caused (invalid_request, configuration_error, not_found) log at
// WARN, every other failure at ERROR.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatCompleter) ChatCompleter {
		return ChatCompleterFunc(func(ctx context.Context, req *chat.CompletionRequest, w ResponseWriter) error {
			start := time.Now()
			err := next.CreateChatCompletion(ctx, req, w)

			mode := "passthrough"
			if req.HasTools() {
				mode = "function_calling"
			}
			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("model", req.Model),
				slog.String("mode", mode),
				slog.Int("tools", len(req.Tools)),
				slog.Duration("duration", time.Since(start)),
			}
			if req.Stream != nil {
				attrs = append(attrs, slog.Bool("stream", *req.Stream))
			}

			if err == nil {
				logger.LogAttrs(ctx, slog.LevelInfo, "completion served", attrs...)
				return nil
			}
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.LogAttrs(ctx, failureLevel(err), "completion failed", attrs...)
			return err
		})
	}
}

func failureLevel(err error) slog.Level {
	apiErr, ok := api.As(err)
	if !ok {
		return slog.LevelError
	}
	switch apiErr.Type {
	case api.ErrorTypeInvalidRequest, api.ErrorTypeConfiguration, api.ErrorTypeNotFound:
		return slog.LevelWarn
	}
	return slog.LevelError
}
