// Package completions provides the chat-completions facade that makes a
// text-only model look like a tool-calling one.
//
// A request that declares tools is intercepted: the tool schemas are
// written into the last user message with the <<function>> protocol, the
// backend is called without streaming, and its plain-text reply is parsed
// back into standard tool calls. Every other request is passed to the
// transport untouched, streaming included.
//
// Streaming together with tools is rejected before the transport is
// called, since calls can only be recognized once the whole reply is known.
package completions
