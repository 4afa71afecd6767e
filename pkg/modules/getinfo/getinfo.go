// Package getinfo logs every message it sees. It is meant for debugging only.
package getinfo

import (
	"context"
	"log/slog"

	"pbot/pkg/module"
	"pbot/pkg/telegram"
)

const Name = "getinfo"

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
	return &Module{log: log.With("component", "module.getinfo")}, nil
}

func (m *Module) Name() string { return Name }

func (m *Module) Handle(_ context.Context, msg module.Message) error {
	msg.Event.View(func(ev *telegram.Message) {
		attrs := []any{
			slog.Int("message_id", ev.ID),
			slog.String("text", ev.Text),
			slog.Group("chat",
				slog.Int64("id", ev.Chat.ID),
				slog.String("kind", string(ev.Chat.Kind)),
				slog.String("title", ev.Chat.Title),
			),
		}
		if ev.Sender != nil {
			attrs = append(attrs, slog.Group("sender",
				slog.Int64("id", ev.Sender.ID),
				slog.String("name", ev.Sender.FullName()),
			))
		}
		m.log.Info("Message received", attrs...)
	})
	return nil
}
