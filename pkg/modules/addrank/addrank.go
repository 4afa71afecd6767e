// Package addrank sets the admin title of the replied-to user when the owner sends
// "!addrank <rank>" in a supergroup or channel.
package addrank

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pbot/pkg/module"
	"pbot/pkg/telegram"
)

const (
	Name    = "addrank"
	Command = "!addrank"

	TextReplyRequired = "[PBOT] ⚠️ 請回覆訊息。"
)

// TextRankSet is the confirmation written over the trigger message.
func TextRankSet(user, rank string) string {
	return fmt.Sprintf("[PBOT] ✅ 成功將 %s 的頭銜設定為 %s。", user, rank)
}

type Config struct {
	Log *slog.Logger
}

type Module struct {
	log *slog.Logger
}

func New(cfg Config) (module.Module, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Module{log: log.With("component", "module.addrank")}, nil
}

func (m *Module) Name() string { return Name }

func (m *Module) Handle(ctx context.Context, msg module.Message) error {
	trigger := msg.Event.Snapshot()
	rank, ok := parseRank(trigger)
	if !ok {
		return nil
	}

	reply, err := msg.Conn.ReplyTo(ctx, trigger)
	if err != nil {
		return fmt.Errorf("get replied message: %w", err)
	}
	if reply == nil || reply.Sender == nil {
		m.log.Warn("No replied user found", "chat_id", trigger.Chat.ID, "message_id", trigger.ID)
		return msg.Edit(ctx, TextReplyRequired)
	}
	user := *reply.Sender

	if err := msg.Conn.SetAdminRank(ctx, trigger.Chat, user, rank); err != nil {
		return fmt.Errorf("set rank of %d: %w", user.ID, err)
	}
	m.log.Info("Rank set", "chat_id", trigger.Chat.ID, "user_id", user.ID, "rank", rank)

	return msg.Edit(ctx, TextRankSet(user.FullName(), rank))
}

// parseRank returns the first argument of an owner-sent command.
func parseRank(msg *telegram.Message) (string, bool) {
	if !msg.FromOwner() {
		return "", false
	}
	fields := strings.Fields(msg.Text)
	if len(fields) < 2 || fields[0] != Command {
		return "", false
	}
	return fields[1], true
}
