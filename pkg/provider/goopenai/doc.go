// Package goopenai is a chat-completion transport built on the
// github.com/sashabaranov/go-openai client. It suits backends that follow
// the OpenAI API closely (OpenAI itself, Azure-style gateways) and is an
// alternative to the plain HTTP transport in openaicompat.
package goopenai
