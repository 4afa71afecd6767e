package addrank

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"pbot/pkg/module"
	"pbot/pkg/telegram"
	"pbot/pkg/telegram/telegramtest"
)

var (
	owner   = telegram.UserRef{ID: 1, Self: true}
	member  = telegram.UserRef{ID: 7, AccessHash: 70, Name: "Ada Lovelace"}
	channel = telegram.ChatRef{ID: 100, AccessHash: 10, Kind: telegram.ChatSupergroup}
)

func newModule(t *testing.T) module.Module {
	t.Helper()
	m, err := New(Config{Log: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	return m
}

func envelope(conn telegram.Conn, text string, out bool, replyTo int) module.Message {
	sender := owner
	if !out {
		sender = member
	}
	return module.Message{
		Conn: conn,
		Event: module.NewSharedEvent(&telegram.Message{
			ID:        50,
			Text:      text,
			Chat:      channel,
			Sender:    &sender,
			Out:       out,
			ReplyToID: replyTo,
		}),
	}
}

func TestSetsRankOfRepliedUser(t *testing.T) {
	conn := &telegramtest.Conn{Replies: map[int]*telegram.Message{
		42: {ID: 42, Chat: channel, Sender: &member},
	}}
	msg := envelope(conn, "!addrank 小幫手 ignored", true, 42)

	require.NoError(t, newModule(t).Handle(context.Background(), msg))

	ranks := conn.CallsOf(telegramtest.OpSetAdminRank)
	require.Len(t, ranks, 1)
	require.Equal(t, channel, ranks[0].Chat)
	require.Equal(t, member, ranks[0].User)
	require.Equal(t, "小幫手", ranks[0].Text)

	edits := conn.CallsOf(telegramtest.OpEdit)
	require.Len(t, edits, 1)
	require.Equal(t, "[PBOT] ✅ 成功將 Ada Lovelace 的頭銜設定為 小幫手。", edits[0].Text)
}

func TestAsksForReply(t *testing.T) {
	tests := []struct {
		name    string
		replyTo int
		replies map[int]*telegram.Message
	}{
		{name: "not a reply", replyTo: 0},
		{name: "reply target deleted", replyTo: 42, replies: map[int]*telegram.Message{}},
		{name: "reply without user sender", replyTo: 42, replies: map[int]*telegram.Message{42: {ID: 42, Chat: channel}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &telegramtest.Conn{Replies: tt.replies}

			require.NoError(t, newModule(t).Handle(context.Background(), envelope(conn, "!addrank boss", true, tt.replyTo)))

			require.Empty(t, conn.CallsOf(telegramtest.OpSetAdminRank))
			edits := conn.CallsOf(telegramtest.OpEdit)
			require.Len(t, edits, 1)
			require.Equal(t, TextReplyRequired, edits[0].Text)
		})
	}
}

func TestIgnoresNonCommands(t *testing.T) {
	for _, tc := range []struct {
		text string
		out  bool
	}{
		{text: "!addrank", out: true},
		{text: "!addrank boss", out: false},
		{text: "!addrankboss x", out: true},
		{text: "hello", out: true},
	} {
		conn := &telegramtest.Conn{}
		m := newModule(t)
		msg := envelope(conn, tc.text, tc.out, 42)

		require.NoError(t, m.Handle(context.Background(), msg))
		require.NoError(t, m.Handle(context.Background(), msg))
		require.Empty(t, conn.Calls(), "text %q", tc.text)
	}
}

func TestRankFailureIsReturned(t *testing.T) {
	conn := &telegramtest.Conn{
		Replies: map[int]*telegram.Message{42: {ID: 42, Chat: channel, Sender: &member}},
		RankErr: &telegram.PlatformError{Op: "set admin rank", Category: telegram.ErrorUnsupported},
	}

	err := newModule(t).Handle(context.Background(), envelope(conn, "!addrank boss", true, 42))
	require.True(t, telegram.IsCategory(err, telegram.ErrorUnsupported))
	require.Empty(t, conn.CallsOf(telegramtest.OpEdit))
}
