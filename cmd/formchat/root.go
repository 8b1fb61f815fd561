package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formchat/internal/config"
)

type rootOptions struct {
	configPath string
	form       string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "formchat",
		Short: "Fill structured forms through a conversation",
		Long: `formchat turns free-text messages into form data validated against a JSON
Schema or OpenAPI component, asking follow-up questions until the form is
complete.

Settings come from an optional YAML file, a .env file and FORMCHAT_*
environment variables. Set OPENROUTER_API_KEY to extract with an LLM;
without it the offline rule extractor is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.form, "form", "", "form to fill (overrides forms.default)")

	cmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newLookupCmd(opts),
		newLintCmd(),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.form != "" {
		cfg.Forms.Default = o.form
	}
	return cfg, nil
}
