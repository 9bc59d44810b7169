package funccall

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

// EncodeTools serializes the declared tools as the JSON array embedded in
// the prompt.
func EncodeTools(tools []chat.Tool) (string, error) {
	if tools == nil {
		tools = []chat.Tool{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tools); err != nil {
		return "", fmt.Errorf("encoding tools: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// InsertFunctionAndQuestion rewrites the content of the last user message
// to
//
//	<<function>>{toolsJSON}\n<<question>>{original content}
//
// The rewrite is done in place: the element of the caller's slice is
// modified and the same slice is returned. Messages without a user turn are
// returned unchanged. Calling it twice on the same messages prepends the
// marker block twice, so callers invoke it once per request.
//
// Content given as parts has its text parts merged into one string. Parts
// without text, such as images, are kept after a single text part holding
// the rewritten text.
func InsertFunctionAndQuestion(messages []chat.Message, toolsJSON string) []chat.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != chat.RoleUser {
			continue
		}
		messages[i].Content = prefixContent(FunctionMarker+toolsJSON+"\n"+QuestionMarker, messages[i].Content)
		break
	}
	return messages
}

func prefixContent(prefix string, content any) any {
	text := prefix + chat.ContentText(content)

	var parts []any
	switch v := content.(type) {
	case []any:
		parts = v
	case []map[string]any:
		for _, m := range v {
			parts = append(parts, m)
		}
	}
	var kept []any
	for _, p := range parts {
		if m, ok := p.(map[string]any); ok {
			if _, isText := m["text"].(string); isText {
				continue
			}
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return text
	}
	return append([]any{map[string]any{"type": "text", "text": text}}, kept...)
}
