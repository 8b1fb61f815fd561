package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formchat/internal/cli"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var (
		sessionID string
		userID    string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Fill the default form interactively in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if !verbose {
				cfg.Log.Level = "warn"
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			chat := cli.NewChat(a.sessions, cli.NewSurveyPrompter(),
				cli.WithOutput(cmd.OutOrStdout()),
				cli.WithSessionID(sessionID),
				cli.WithUserID(userID),
			)
			return chat.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session id")
	cmd.Flags().StringVar(&userID, "user", "", "user id recorded on submissions")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "keep the configured log level")
	return cmd
}
