package funccall

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

// Fallback values for completion fields the caller does not supply.
const (
	DefaultCompletionID = "chatcmpl-default-id"
	DefaultModel        = "default-model"
	DefaultToolCallID   = "1"
)

// Call is one function call parsed from model output.
type Call struct {
	Name      string
	Arguments map[string]any
}

// ArgumentsJSON encodes the arguments as a JSON object. Keys are sorted and
// HTML characters are left unescaped.
func (c Call) ArgumentsJSON() string {
	args := c.Arguments
	if args == nil {
		args = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(args); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// ParseResult holds the calls found in one model reply.
type ParseResult struct {
	Calls []Call

	// Dropped counts marker segments that did not contain a call.
	Dropped int
}

// ParseCalls extracts every <<function>>name(args) call from raw model
// output. Text before the first marker is ignored. A segment without an
// opening parenthesis is dropped. Otherwise the name is the text before the
// first "(" and the arguments are the rest with trailing whitespace and a
// single trailing ")" removed. Parentheses are not balanced, so nested
// parentheses are not supported.
func ParseCalls(raw string) ParseResult {
	var res ParseResult
	if !strings.Contains(raw, FunctionMarker) {
		return res
	}

	segments := strings.Split(raw, FunctionMarker)
	for _, seg := range segments[1:] {
		open := strings.IndexByte(seg, '(')
		if open < 0 {
			res.Dropped++
			continue
		}
		argsText := strings.TrimRightFunc(seg[open+1:], unicode.IsSpace)
		argsText = strings.TrimSuffix(argsText, ")")

		res.Calls = append(res.Calls, Call{
			Name:      strings.TrimSpace(seg[:open]),
			Arguments: ParseArguments(argsText),
		})
	}
	return res
}

// Metadata carries optional values for the completion record. Zero fields
// fall back to the package defaults.
type Metadata struct {
	ID           string
	Object       string
	Created      int64
	Model        string
	FinishReason string // used only when no calls were parsed
	ToolCallID   string
	Usage        *chat.Usage
}

// AdaptResponse parses raw model output and assembles the completion record
// for it. It never fails.
func AdaptResponse(raw string, meta Metadata) *chat.Completion {
	return BuildCompletion(raw, ParseCalls(raw).Calls, meta)
}

// BuildCompletion assembles a completion with exactly one choice. With at
// least one call the choice finishes with "tool_calls", has empty content
// and lists every call. Without calls it carries raw as content and
// finishes with meta.FinishReason or "stop".
func BuildCompletion(raw string, calls []Call, meta Metadata) *chat.Completion {
	usage := chat.Usage{}
	if meta.Usage != nil {
		usage = *meta.Usage
	}

	c := &chat.Completion{
		ID:      orDefault(meta.ID, DefaultCompletionID),
		Object:  orDefault(meta.Object, chat.ObjectChatCompletion),
		Created: meta.Created,
		Model:   orDefault(meta.Model, DefaultModel),
		Usage:   &usage,
	}

	choice := chat.Choice{
		Index:   0,
		Message: chat.Message{Role: chat.RoleAssistant},
	}

	if len(calls) > 0 {
		toolCallID := orDefault(meta.ToolCallID, DefaultToolCallID)
		choice.FinishReason = chat.FinishReasonToolCalls
		choice.Message.Content = ""
		for _, call := range calls {
			choice.Message.ToolCalls = append(choice.Message.ToolCalls, chat.ToolCall{
				ID:   toolCallID,
				Type: chat.ToolTypeFunction,
				Function: chat.FunctionCall{
					Name:      call.Name,
					Arguments: call.ArgumentsJSON(),
				},
			})
		}
	} else {
		choice.FinishReason = orDefault(meta.FinishReason, chat.FinishReasonStop)
		choice.Message.Content = raw
	}

	c.Choices = []chat.Choice{choice}
	return c
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
