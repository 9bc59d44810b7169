// Package transport defines the handler interfaces and middleware chain for
// the gateway's HTTP/SSE transport layer.
//
// The transport layer bridges external clients and the completions facade.
// It deserializes incoming Chat Completions requests into the types of
// pkg/chat, dispatches them for processing, and serializes the result back
// to the client either as one JSON document or as an SSE chunk stream.
//
// # Handler Interfaces
//
//   - ChatCompleter handles POST /v1/chat/completions.
//   - ModelLister handles GET /v1/models.
//
// The ResponseWriter interface abstracts streaming and non-streaming output,
// so a ChatCompleter can emit chunks or a complete completion without
// knowing the underlying protocol.
//
// # Middleware
//
// The middleware chain wraps ChatCompleter with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog.
package transport
