// Package chat defines the Chat Completions wire schema the shim consumes
// and produces. The types mirror the OpenAI Chat Completions API so that a
// completion assembled by the shim is indistinguishable from one produced
// by a backend with native tool calling.
package chat
