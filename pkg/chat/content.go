package chat

import "strings"

// ContentText returns the textual content of a message. String content is
// returned as is; a list of content parts is flattened by joining the text
// of every part that carries one. Anything else yields "".
func ContentText(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		var parts []string
		for _, p := range v {
			if m, ok := p.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	case []map[string]any:
		var parts []string
		for _, m := range v {
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// Bool returns a pointer to b, for optional request flags.
func Bool(b bool) *bool {
	return &b
}
