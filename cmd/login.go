package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in interactively and store the session",
	Long:  "Performs the Telegram login flow, asking for the login code and password if needed, and writes the session file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup("cmd.login")
		if err != nil {
			return err
		}

		client, err := newClient(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		self, err := client.Login(ctx)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%d). Session saved to %s\n", self.FullName(), self.ID, cfg.Telegram.SessionPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
