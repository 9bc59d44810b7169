package goopenai

import (
	"github.com/sashabaranov/go-openai"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

// toOpenAIRequest converts a chat request into the go-openai request type.
func toOpenAIRequest(req *chat.CompletionRequest, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:      req.Model,
		Stop:       req.Stop,
		Stream:     stream,
		Seed:       req.Seed,
		User:       req.User,
		ToolChoice: req.ToolChoice,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		out.TopP = float32(*req.TopP)
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if req.N != nil {
		out.N = *req.N
	}
	if req.FrequencyPenalty != nil {
		out.FrequencyPenalty = float32(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		out.PresencePenalty = float32(*req.PresencePenalty)
	}
	if stream && req.StreamOptions != nil {
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: req.StreamOptions.IncludeUsage}
	}
	if rf, ok := req.ResponseFormat.(map[string]any); ok {
		if t, ok := rf["type"].(string); ok {
			out.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatType(t),
			}
		}
	}

	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toOpenAIMessage(m))
	}

	for _, t := range req.Tools {
		def := &openai.FunctionDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
		}
		if len(t.Function.Parameters) > 0 {
			def.Parameters = t.Function.Parameters
		}
		if t.Function.Strict != nil {
			def.Strict = *t.Function.Strict
		}
		out.Tools = append(out.Tools, openai.Tool{Type: openai.ToolType(t.Type), Function: def})
	}
	return out
}

func toOpenAIMessage(m chat.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       m.Role,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}

	switch c := m.Content.(type) {
	case string:
		out.Content = c
	case []any:
		out.MultiContent = toMessageParts(c)
	default:
		out.Content = chat.ContentText(c)
	}

	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolType(tc.Type),
			Function: openai.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

// toMessageParts keeps text and image parts; other part kinds have no
// go-openai representation and are dropped.
func toMessageParts(parts []any) []openai.ChatMessagePart {
	var out []openai.ChatMessagePart
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		switch part["type"] {
		case "text":
			text, _ := part["text"].(string)
			out = append(out, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: text})
		case "image_url":
			img, _ := part["image_url"].(map[string]any)
			url, _ := img["url"].(string)
			detail, _ := img["detail"].(string)
			out = append(out, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetail(detail)},
			})
		}
	}
	return out
}

// fromOpenAIResponse converts a go-openai completion into the chat type.
func fromOpenAIResponse(resp openai.ChatCompletionResponse) *chat.Completion {
	out := &chat.Completion{
		ID:                resp.ID,
		Object:            resp.Object,
		Created:           resp.Created,
		Model:             resp.Model,
		SystemFingerprint: resp.SystemFingerprint,
		Usage: &chat.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if out.Object == "" {
		out.Object = chat.ObjectChatCompletion
	}

	for _, c := range resp.Choices {
		msg := chat.Message{
			Role:       c.Message.Role,
			Content:    c.Message.Content,
			Name:       c.Message.Name,
			ToolCallID: c.Message.ToolCallID,
		}
		if msg.Role == "" {
			msg.Role = chat.RoleAssistant
		}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				Function: chat.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out.Choices = append(out.Choices, chat.Choice{
			Index:        c.Index,
			Message:      msg,
			FinishReason: string(c.FinishReason),
		})
	}
	return out
}

// fromOpenAIChunk converts one streamed go-openai chunk into the chat type.
func fromOpenAIChunk(resp openai.ChatCompletionStreamResponse) *chat.Chunk {
	out := &chat.Chunk{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
		Choices: make([]chat.ChunkChoice, 0, len(resp.Choices)),
	}
	if out.Object == "" {
		out.Object = chat.ObjectChatCompletionChunk
	}
	if resp.Usage != nil {
		out.Usage = &chat.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	for _, c := range resp.Choices {
		choice := chat.ChunkChoice{
			Index: c.Index,
			Delta: chat.Delta{Role: c.Delta.Role},
		}
		if c.Delta.Content != "" {
			content := c.Delta.Content
			choice.Delta.Content = &content
		}
		for i, tc := range c.Delta.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			choice.Delta.ToolCalls = append(choice.Delta.ToolCalls, chat.ChunkToolCall{
				Index: idx,
				ID:    tc.ID,
				Type:  string(tc.Type),
				Function: chat.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		if c.FinishReason != "" {
			reason := string(c.FinishReason)
			choice.FinishReason = &reason
		}
		out.Choices = append(out.Choices, choice)
	}
	return out
}
