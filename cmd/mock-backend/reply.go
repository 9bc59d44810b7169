package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
	"github.com/puppetm4st3r/local-function-calling/pkg/funccall"
)

// Canned replies.
const (
	greeting      = "Hello, nice day!"
	noMatchReply  = "I can answer that without calling a function."
	clarification = "Which one do you mean? Please be more specific."
)

// reply produces the model text for a request.
//
//   - No tool block: a greeting, or "1, 2, 3, 4, 5" for a counting prompt.
//   - Tool block and a question mentioning "and" with two matching tools:
//     two calls.
//   - Tool block and one matching tool: one call.
//   - Tool block and a question mentioning "which": a plain clarification.
//   - Otherwise: a plain reply.
//
// A tool matches when a word of its name (split on "_") longer than three
// letters appears in the question.
func reply(req *chat.CompletionRequest) string {
	text := lastUserText(req)

	tools, question, ok := splitPrompt(text)
	if !ok {
		if strings.Contains(strings.ToLower(text), "count from 1 to 5") {
			return "1, 2, 3, 4, 5"
		}
		return greeting
	}

	lower := strings.ToLower(question)
	var matched []chat.Tool
	for _, t := range tools {
		if matches(t.Function.Name, lower) {
			matched = append(matched, t)
		}
	}

	switch {
	case len(matched) == 0 && strings.Contains(lower, "which"):
		return clarification
	case len(matched) == 0:
		return noMatchReply
	case len(matched) > 1 && !strings.Contains(lower, " and "):
		matched = matched[:1]
	}

	var b strings.Builder
	for _, t := range matched {
		b.WriteString(funccall.FunctionMarker)
		b.WriteString(renderCall(t, question))
	}
	return b.String()
}

// splitPrompt separates the tool block written by the shim from the
// original question.
func splitPrompt(text string) ([]chat.Tool, string, bool) {
	rest, ok := strings.CutPrefix(text, funccall.FunctionMarker)
	if !ok {
		return nil, "", false
	}
	toolsJSON, question, ok := strings.Cut(rest, "\n"+funccall.QuestionMarker)
	if !ok {
		return nil, "", false
	}
	var tools []chat.Tool
	if err := json.Unmarshal([]byte(toolsJSON), &tools); err != nil {
		return nil, "", false
	}
	return tools, question, true
}

func matches(name, question string) bool {
	for _, word := range strings.Split(strings.ToLower(name), "_") {
		if len(word) > 3 && strings.Contains(question, word) {
			return true
		}
	}
	return false
}

// renderCall writes name(arg=value, ...) for the tool's required
// parameters. String values are the last capitalized word of the
// question, integers are 1 and booleans are true.
func renderCall(t chat.Tool, question string) string {
	var schema struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	json.Unmarshal(t.Function.Parameters, &schema)

	required := slices.Clone(schema.Required)
	slices.Sort(required)

	args := make([]string, 0, len(required))
	for _, name := range required {
		switch schema.Properties[name].Type {
		case "integer", "number":
			args = append(args, name+"=1")
		case "boolean":
			args = append(args, name+"=true")
		default:
			args = append(args, fmt.Sprintf("%s=%q", name, properNoun(question)))
		}
	}
	return t.Function.Name + "(" + strings.Join(args, ", ") + ")"
}

// properNoun returns the last capitalized word after the first word of s,
// or "unknown".
func properNoun(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	for i := len(words) - 1; i > 0; i-- {
		if r := []rune(words[i]); unicode.IsUpper(r[0]) {
			return words[i]
		}
	}
	return "unknown"
}

func lastUserText(req *chat.CompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == chat.RoleUser {
			return chat.ContentText(req.Messages[i].Content)
		}
	}
	return ""
}
