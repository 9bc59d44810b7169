package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/puppetm4st3r/local-function-calling/pkg/chat"
)

type completeOptions struct {
	model     string
	system    string
	toolsFile string
	stream    bool
}

func newCompleteCommand(root *rootOptions) *cobra.Command {
	opts := &completeOptions{}

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Send one chat completion through the shim",
		Long: `complete sends a single user message to the configured backend. With
--tools the message is rewritten into the <<function>> prompt and the
reply is decoded into tool calls. The prompt is read from stdin when no
argument is given.`,
		Example: `  lfc complete --tools tools.json "What is the weather in Paris?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			req, err := opts.request(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			client, err := newClient(cfg)
			if err != nil {
				return fmt.Errorf("creating client: %w", err)
			}
			defer client.Close()

			res, err := client.Chat().Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !res.IsStream() {
				return writeJSON(cmd.OutOrStdout(), res.Completion)
			}
			return printStream(cmd.OutOrStdout(), res.Stream)
		},
	}

	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model name (defaults to engine.default_model)")
	cmd.Flags().StringVarP(&opts.system, "system", "s", "", "system message")
	cmd.Flags().StringVarP(&opts.toolsFile, "tools", "t", "", "JSON file with the tool definitions")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "stream the reply (not available with --tools)")
	return cmd
}

// request builds the completion request from flags and the prompt.
func (o *completeOptions) request(stdin io.Reader, args []string) (*chat.CompletionRequest, error) {
	prompt := strings.Join(args, " ")
	if prompt == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return nil, fmt.Errorf("a prompt is required")
	}

	req := &chat.CompletionRequest{
		Model:  o.model,
		Stream: chat.Bool(o.stream),
	}
	if o.system != "" {
		req.Messages = append(req.Messages, chat.Message{Role: chat.RoleSystem, Content: o.system})
	}
	req.Messages = append(req.Messages, chat.Message{Role: chat.RoleUser, Content: prompt})

	if o.toolsFile != "" {
		tools, err := readTools(o.toolsFile)
		if err != nil {
			return nil, err
		}
		req.Tools = tools
	}
	return req, nil
}

// readTools loads a JSON array of tool definitions.
func readTools(path string) ([]chat.Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tools: %w", err)
	}
	var tools []chat.Tool
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("parsing tools %s: %w", path, err)
	}
	return tools, nil
}

// printStream writes streamed content deltas as they arrive.
func printStream(w io.Writer, events <-chan chat.StreamEvent) error {
	for ev := range events {
		if ev.Err != nil {
			return ev.Err
		}
		for _, c := range ev.Chunk.Choices {
			if c.Delta.Content != nil {
				fmt.Fprint(w, *c.Delta.Content)
			}
		}
	}
	fmt.Fprintln(w)
	return nil
}
