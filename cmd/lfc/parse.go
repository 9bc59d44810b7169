package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/puppetm4st3r/local-function-calling/pkg/funccall"
)

func newParseCommand() *cobra.Command {
	var meta funccall.Metadata

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Decode raw model text from stdin into a chat completion",
		Long: `parse reads a model reply from stdin and prints the chat completion the
shim would return for it: tool calls when the text contains
<<function>>name(args) markers, the text itself otherwise.`,
		Example: `  echo '<<function>>get_weather(city="Paris")' | lfc parse`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}

			res := funccall.ParseCalls(string(raw))
			if res.Dropped > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "dropped %d segment(s) without a call\n", res.Dropped)
			}
			return writeJSON(cmd.OutOrStdout(), funccall.BuildCompletion(string(raw), res.Calls, meta))
		},
	}

	cmd.Flags().StringVar(&meta.ID, "id", "", "completion id")
	cmd.Flags().StringVarP(&meta.Model, "model", "m", "", "model name")
	cmd.Flags().Int64Var(&meta.Created, "created", 0, "creation timestamp")
	return cmd
}
