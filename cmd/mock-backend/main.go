// Command mock-backend runs a deterministic, text-only Chat Completions
// server. It never emits native tool calls: when the last user message
// carries a <<function>> tool block it answers in the textual protocol,
// which makes it a stand-in for a small local model behind the shim.
//
// The listen port comes from --port, then MOCK_PORT, then 9090.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		port  string
		grace time.Duration
	)
	cmd := &cobra.Command{
		Use:           "mock-backend",
		Short:         "Serve a scripted text-only Chat Completions backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err := serve(ctx, &http.Server{Addr: ":" + port, Handler: newMux()}, grace)
			if err != nil {
				slog.Error("mock backend failed", "error", err)
			}
			return err
		},
	}

	defaultPort := os.Getenv("MOCK_PORT")
	if defaultPort == "" {
		defaultPort = "9090"
	}
	cmd.Flags().StringVar(&port, "port", defaultPort, "listen port")
	cmd.Flags().DurationVar(&grace, "shutdown-timeout", 5*time.Second, "grace period for open connections")
	return cmd
}

// serve runs srv until ctx ends, then shuts it down within grace.
func serve(ctx context.Context, srv *http.Server, grace time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("mock backend starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("mock backend shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}
