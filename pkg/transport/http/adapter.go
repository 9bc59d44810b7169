package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/transport"
)

// Adapter maps the Chat Completions HTTP routes onto a ChatCompleter and
// an optional ModelLister.
type Adapter struct {
	completer transport.ChatCompleter
	models    transport.ModelLister
	inflight  *transport.InFlightRegistry
	mux       *http.ServeMux
	config    Config
}

type Config struct {
	MaxBodySize int64
}

func DefaultConfig() Config {
	return Config{MaxBodySize: 10 << 20}
}

// NewAdapter wraps completer in middlewares, first one outermost. A nil
// models answers GET /v1/models with 501.
func NewAdapter(completer transport.ChatCompleter, models transport.ModelLister, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	a := &Adapter{
		completer: transport.Chain(middlewares...)(completer),
		models:    models,
		inflight:  transport.NewInFlightRegistry(),
		mux:       http.NewServeMux(),
		config:    cfg,
	}
	a.mux.HandleFunc("POST /v1/chat/completions", a.handleChatCompletions)
	a.mux.HandleFunc("GET /v1/models", a.handleListModels)
	return a
}

// Handler returns the routes behind X-Request-ID handling.
func (a *Adapter) Handler() http.Handler {
	return withRequestID(a.mux)
}

// InFlight returns the registry of completions being served.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// withRequestID keeps a client's X-Request-ID or mints one, stores it in
// the request context and echoes it back.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// handleChatCompletions serves POST /v1/chat/completions.
func (a *Adapter) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	req, status, apiErr := a.decodeRequest(w, r)
	if apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, status)
		return
	}

	id := transport.RequestIDFromContext(r.Context())
	ctx, release := a.inflight.Track(r.Context(), id)
	defer release()

	rw := newResponseWriter(w)
	if err := a.completer.CreateChatCompletion(ctx, req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
		return
	}
	if err := rw.close(); err != nil {
		slog.Debug("failed to terminate stream", "request_id", id, "error", err)
	}
}

// decodeRequest reads the JSON body. A missing Content-Type is accepted.
func (a *Adapter) decodeRequest(w http.ResponseWriter, r *http.Request) (*chat.CompletionRequest, int, *api.APIError) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return nil, http.StatusUnsupportedMediaType,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json")
		}
	}

	var req chat.CompletionRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)).Decode(&req)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return nil, http.StatusRequestEntityTooLarge,
			api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))
	case err != nil:
		return nil, http.StatusBadRequest, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error())
	}
	return &req, http.StatusOK, nil
}

// handleListModels serves GET /v1/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	if a.models == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "model listing is not available"),
			http.StatusNotImplemented,
		)
		return
	}

	infos, err := a.models.ListModels(r.Context())
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	list := chat.ModelList{Object: "list", Data: make([]chat.Model, 0, len(infos))}
	for _, m := range infos {
		object := m.Object
		if object == "" {
			object = "model"
		}
		list.Data = append(list.Data, chat.Model{ID: m.ID, Object: object, Created: m.Created, OwnedBy: m.OwnedBy})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// writeHandlerError reports err as a JSON error, or as a final event when
// the stream has already begun.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *responseWriter, err error) {
	if rw.streaming() {
		if ferr := rw.abort(transport.ToAPIError(err)); ferr != nil {
			slog.Debug("failed to report stream error", "error", ferr)
		}
		return
	}
	transport.WriteError(w, err)
}
