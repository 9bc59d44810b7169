// Package api holds the structured error type shared by every layer of the
// shim: the completions facade, the backend transports and the HTTP gateway.
//
// Errors serialize to the OpenAI-compatible envelope:
//
//	{"error": {"type": "...", "code": "...", "param": "...", "message": "..."}}
package api
