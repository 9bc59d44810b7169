package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/puppetm4st3r/local-function-calling/pkg/completions"
	"github.com/puppetm4st3r/local-function-calling/pkg/config"
	"github.com/puppetm4st3r/local-function-calling/pkg/transport"
	transporthttp "github.com/puppetm4st3r/local-function-calling/pkg/transport/http"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the OpenAI-compatible gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

// serve runs the gateway until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	client, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	authMW, err := newAuthMiddleware(cfg.Auth)
	if err != nil {
		client.Close()
		return fmt.Errorf("creating auth: %w", err)
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	srv := transporthttp.NewServer(
		transport.NewFacadeCompleter(client.Chat()),
		client,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithHTTPMiddleware(authMW),
	)

	slog.Info("lfc gateway configured",
		"port", cfg.Server.Port,
		"provider", client.Provider().Name(),
		"backend", cfg.Engine.BackendURL,
		"model", cfg.Engine.DefaultModel,
		"auth", cfg.Auth.Type,
		"stream_default", cfg.Shim.StreamDefault,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		probeBackend(gctx, client)
		return nil
	})

	err = g.Wait()
	if cerr := client.Close(); cerr != nil {
		slog.Warn("closing provider", "error", cerr)
	}
	return err
}

// probeBackend lists the backend's models once at startup. A failure is
// logged and does not stop the gateway.
func probeBackend(ctx context.Context, client *completions.Client) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	models, err := client.ListModels(probeCtx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("backend probe failed", "error", err)
		}
		return
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	slog.Info("backend reachable", "models", ids)
}
