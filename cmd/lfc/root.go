package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/puppetm4st3r/local-function-calling/pkg/config"
	"github.com/puppetm4st3r/local-function-calling/pkg/debug"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "lfc",
		Short: "Function calling for models that only produce text",
		Long: `lfc lets a chat model without native tool calling take part in
tool-calling exchanges. Declared tools are written into the prompt and
<<function>>name(args) markers in the reply are turned back into tool calls.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newCompleteCommand(opts))
	root.AddCommand(newParseCommand())

	return root
}

// loadConfig loads the layered configuration and initializes logging.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)
	debug.Log("config", "configuration loaded",
		"provider", cfg.Engine.Provider,
		"backend", cfg.Engine.BackendURL,
		"auth", cfg.Auth.Type,
	)
	return cfg, nil
}
