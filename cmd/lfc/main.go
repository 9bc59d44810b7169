// Command lfc runs the local function-calling shim.
//
// Subcommands:
//
//	lfc serve     run the OpenAI-compatible gateway
//	lfc complete  send one shimmed chat completion to a backend
//	lfc parse     decode raw model text from stdin into a completion
//
// Configuration is read from a YAML file (--config, LFC_CONFIG,
// ./config.yaml or /etc/lfc/config.yaml) with LFC_* environment overrides.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("lfc failed", "error", err)
		stop()
		os.Exit(1)
	}
}
