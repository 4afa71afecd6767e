package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"pbot/pkg/telegram"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List chats and their ids",
	Long:  "Lists every chat of the account so ids for TG_FWD_TO and PBOT_SCHEDULE can be looked up.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup("cmd.chats")
		if err != nil {
			return err
		}

		client, err := newClient(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return client.Run(ctx, func(ctx context.Context) error {
			chats, err := client.ListChats(ctx)
			if err != nil {
				return fmt.Errorf("list chats: %w", err)
			}
			renderChats(cmd.OutOrStdout(), chats)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(chatsCmd)
}

func renderChats(w io.Writer, chats []telegram.ChatRef) {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "KIND", "TITLE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, chat := range chats {
		t.Row(strconv.FormatInt(chat.ID, 10), string(chat.Kind), chat.Title)
	}

	fmt.Fprintln(w, t.Render())
}
