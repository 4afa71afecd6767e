package getinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"pbot/pkg/module"
	"pbot/pkg/telegram"
	"pbot/pkg/telegram/telegramtest"
)

func TestLogsMessageDetails(t *testing.T) {
	var buf bytes.Buffer
	m, err := New(Config{Log: slog.New(slog.NewJSONHandler(&buf, nil))})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	conn := &telegramtest.Conn{}
	msg := module.Message{
		Conn: conn,
		Event: module.NewSharedEvent(&telegram.Message{
			ID:     3,
			Text:   "hi",
			Chat:   telegram.ChatRef{ID: 100, Kind: telegram.ChatGroup, Title: "Team"},
			Sender: &telegram.UserRef{ID: 7, Username: "ada"},
		}),
	}
	if err := m.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	var entry struct {
		Msg    string `json:"msg"`
		Text   string `json:"text"`
		Chat   struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Sender struct {
			Name string `json:"name"`
		} `json:"sender"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	if entry.Msg != "Message received" || entry.Text != "hi" || entry.Chat.ID != 100 || entry.Sender.Name != "@ada" {
		t.Fatalf("unexpected log entry: %s", buf.String())
	}
	if len(conn.Calls()) != 0 {
		t.Fatalf("expected no commands, got %v", conn.Calls())
	}
}
