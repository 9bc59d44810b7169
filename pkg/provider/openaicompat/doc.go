// Package openaicompat is the transport for any OpenAI-compatible Chat
// Completions backend (vLLM, llama.cpp server, Ollama, LiteLLM, ...). It
// handles request serialization, response parsing, SSE chunk streaming and
// error mapping.
//
// Requests and responses are forwarded without reinterpretation: the
// function-call protocol lives in the completions facade, not here.
package openaicompat
