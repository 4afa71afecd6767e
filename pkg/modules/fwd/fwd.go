// Package fwd forwards the replied-to message to a personal chat when the owner sends !cufwd.
package fwd

import (
	"context"
	"errors"
	"log/slog"

	"pbot/pkg/module"
	"pbot/pkg/telegram"
)

const (
	Name    = "fwd"
	Command = "!cufwd"

	TextForwarded        = "[PBOT] 💬 訊息已轉錄至個人群組。若要撤下請回覆告知。"
	TextReplyRequired    = "[PBOT] ⚠️ 請回覆訊息。"
	TextAlreadyForwarded = "[PBOT] ℹ️ 此訊息已轉錄過。"
)

// Ledger remembers which messages were forwarded.
type Ledger interface {
	Forwarded(ctx context.Context, chatID int64, messageID int) (bool, error)
	Record(ctx context.Context, chatID int64, messageID int, targetID int64) error
}

type Config struct {
	Target telegram.ChatRef
	// Records is optional.
	Records Ledger
	Log     *slog.Logger
}

type Module struct {
	target  telegram.ChatRef
	records Ledger
	log     *slog.Logger
}

func New(cfg Config) (module.Module, error) {
	if cfg.Target.ID == 0 {
		return nil, errors.New("fwd: forward target is not set")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Module{
		target:  cfg.Target,
		records: cfg.Records,
		log:     log.With("component", "module.fwd"),
	}, nil
}

func (m *Module) Name() string { return Name }

func (m *Module) OnStart() {
	m.log.Info("Forward module ready", "command", Command, "target", m.target.String())
}

func (m *Module) Handle(ctx context.Context, msg module.Message) error {
	trigger := msg.Event.Snapshot()
	if trigger.Text != Command || !trigger.FromOwner() {
		return nil
	}

	replyID, ok := trigger.ReplyTarget()
	if !ok {
		m.log.Warn("No reply message found", "chat_id", trigger.Chat.ID, "message_id", trigger.ID)
		return msg.Edit(ctx, TextReplyRequired)
	}

	if m.records != nil {
		done, err := m.records.Forwarded(ctx, trigger.Chat.ID, replyID)
		if err != nil {
			m.log.Warn("Failed to check forward record", "error", err)
		} else if done {
			m.log.Info("Message already forwarded", "chat_id", trigger.Chat.ID, "message_id", replyID)
			return msg.Edit(ctx, TextAlreadyForwarded)
		}
	}

	// the replied-to message always lives in the same chat as the trigger.
	if _, err := msg.Conn.Forward(ctx, m.target, replyID, trigger.Chat); err != nil {
		m.log.Error("Failed to forward message",
			"chat_id", trigger.Chat.ID,
			"message_id", replyID,
			"category", telegram.CategoryFromError(err),
			"error", err,
		)
		return nil
	}
	m.log.Info("Message forwarded", "chat_id", trigger.Chat.ID, "message_id", replyID, "target_id", m.target.ID)

	if m.records != nil {
		if err := m.records.Record(ctx, trigger.Chat.ID, replyID, m.target.ID); err != nil {
			m.log.Warn("Failed to record forward", "error", err)
		}
	}

	return msg.Edit(ctx, TextForwarded)
}
