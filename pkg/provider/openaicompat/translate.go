package openaicompat

import (
	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/provider"
)

// PrepareRequest returns a shallow copy of req with the stream flag pinned
// and the model name mapped. The caller's request is never modified.
func PrepareRequest(req *chat.CompletionRequest, stream bool, mapper func(string) string) *chat.CompletionRequest {
	out := *req
	out.Stream = chat.Bool(stream)
	if !stream {
		out.StreamOptions = nil
	}
	if mapper != nil {
		out.Model = mapper(out.Model)
	}
	return &out
}

// NormalizeCompletion fills fields some backends omit so that callers see
// a well-formed chat.completion object.
func NormalizeCompletion(c *chat.Completion) {
	if c.Object == "" {
		c.Object = chat.ObjectChatCompletion
	}
	for i := range c.Choices {
		if c.Choices[i].Message.Role == "" {
			c.Choices[i].Message.Role = chat.RoleAssistant
		}
	}
}

// ToModelInfo converts a /v1/models entry, defaulting the object field.
func ToModelInfo(m chat.Model) provider.ModelInfo {
	object := m.Object
	if object == "" {
		object = "model"
	}
	return provider.ModelInfo{ID: m.ID, Object: object, Created: m.Created, OwnedBy: m.OwnedBy}
}
