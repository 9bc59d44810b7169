package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/puppetm4st3r/local-function-calling/pkg/observability"
	"github.com/puppetm4st3r/local-function-calling/pkg/transport"
)

// Server is the gateway's HTTP front: the Chat Completions routes behind
// optional HTTP middleware, plus unauthenticated health and metrics
// endpoints.
type Server struct {
	hs      *http.Server
	adapter *Adapter
	cfg     ServerConfig
	logger  *slog.Logger
	wrap    []func(http.Handler) http.Handler
}

// ServerConfig holds the listener and lifecycle settings.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration // zero, since streams may stay open for minutes
	ShutdownTimeout time.Duration
	MetricsPath     string // empty disables the metrics endpoint
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     DefaultConfig().MaxBodySize,
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MetricsPath:     "/metrics",
	}
}

type ServerOption func(*Server)

func WithAddr(addr string) ServerOption { return func(s *Server) { s.cfg.Addr = addr } }

func WithMaxBodySize(n int64) ServerOption { return func(s *Server) { s.cfg.MaxBodySize = n } }

func WithReadTimeout(d time.Duration) ServerOption { return func(s *Server) { s.cfg.ReadTimeout = d } }

func WithWriteTimeout(d time.Duration) ServerOption { return func(s *Server) { s.cfg.WriteTimeout = d } }

func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.cfg.ShutdownTimeout = d }
}

// WithMetricsPath moves the Prometheus endpoint. An empty path disables it.
func WithMetricsPath(path string) ServerOption { return func(s *Server) { s.cfg.MetricsPath = path } }

func WithLogger(l *slog.Logger) ServerOption { return func(s *Server) { s.logger = l } }

// WithHTTPMiddleware wraps the API routes, outermost first. Health and
// metrics stay outside it.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.wrap = append(s.wrap, mw...) }
}

// NewServer serves completer, and models when it is not nil. Recovery,
// request ID and logging middleware are always installed around completer.
func NewServer(completer transport.ChatCompleter, models transport.ModelLister, opts ...ServerOption) *Server {
	s := &Server{cfg: DefaultServerConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	s.adapter = NewAdapter(completer, models, Config{MaxBodySize: s.cfg.MaxBodySize},
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	)

	s.hs = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      observability.MetricsMiddleware(s.routes()),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	return s
}

// routes registers the API paths by name so the metrics middleware can
// label them. Anything else falls through to the adapter for its 404/405.
func (s *Server) routes() *http.ServeMux {
	var api http.Handler = s.adapter.Handler()
	for i := len(s.wrap) - 1; i >= 0; i-- {
		api = s.wrap[i](api)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/chat/completions", api)
	mux.Handle("GET /v1/models", api)
	mux.Handle("/", api)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "ok")
	})
	if s.cfg.MetricsPath != "" {
		mux.Handle("GET "+s.cfg.MetricsPath, promhttp.Handler())
	}
	return mux
}

// Handler returns the root handler, health and metrics included.
func (s *Server) Handler() http.Handler { return s.hs.Handler }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains open
// requests within the shutdown timeout. Requests still running after it
// are cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.hs.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.drain()
	})
	return g.Wait()
}

func (s *Server) drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.cfg.ShutdownTimeout))
	if err := s.hs.Shutdown(ctx); err != nil {
		n := s.adapter.InFlight().CancelAll()
		s.logger.Error("shutdown deadline exceeded", slog.String("error", err.Error()), slog.Int("cancelled", n))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown stops the server without the drain deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.hs.Shutdown(ctx)
}
