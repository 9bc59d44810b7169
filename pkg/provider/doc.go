// Package provider defines the interface for chat-completion backends the
// shim forwards to. Adapters (openaicompat, goopenai) speak their backend's
// wire protocol and exchange the shared chat types with the rest of the
// module, so the completions facade never sees protocol details.
package provider
