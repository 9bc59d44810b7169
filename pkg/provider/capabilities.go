package provider

import (
	"slices"

	"github.com/puppetm4st3r/local-function-calling/pkg/api"
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

// Capabilities is what a backend declares it can do. Requests outside it
// are refused before anything is sent upstream. Native tool calling is not
// among them: tools always travel in the prompt.
type Capabilities struct {
	Streaming bool
	Vision    bool
	Audio     bool

	// SupportedModels restricts the model names accepted. Empty accepts any.
	SupportedModels []string
}

// Serves reports whether model may be requested. An empty name is left for
// the backend to default.
func (c Capabilities) Serves(model string) bool {
	return model == "" || len(c.SupportedModels) == 0 || slices.Contains(c.SupportedModels, model)
}

// accepts reports whether a content part of the given type can be sent.
// Part types other than images and audio are always accepted.
func (c Capabilities) accepts(partType any) (ok bool, what string) {
	switch partType {
	case "image_url", "input_image":
		return c.Vision, "image"
	case "input_audio":
		return c.Audio, "audio"
	}
	return true, ""
}

// ValidateCapabilities returns the first reason caps cannot serve req, or
// nil. stream is the resolved streaming flag.
func ValidateCapabilities(caps Capabilities, req *chat.CompletionRequest, stream bool) *api.APIError {
	if stream && !caps.Streaming {
		return api.NewInvalidRequestError("stream", "the configured provider does not support streaming responses")
	}
	if !caps.Serves(req.Model) {
		return api.NewNotFoundError("model " + req.Model + " is not served by the configured provider")
	}

	for _, msg := range req.Messages {
		parts, _ := msg.Content.([]any)
		for _, p := range parts {
			part, _ := p.(map[string]any)
			if ok, what := caps.accepts(part["type"]); !ok {
				return api.NewInvalidRequestError("messages", "the configured provider does not support "+what+" inputs")
			}
		}
	}
	return nil
}
