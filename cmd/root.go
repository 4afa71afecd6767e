/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pbot",
	Short: "Automate a Telegram user account with chat commands",
	Long: "pbot logs in as your Telegram account and runs modules that react to your messages, " +
		"such as forwarding a replied message with !cufwd or setting admin titles with !addrank.",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}
