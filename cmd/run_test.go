package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pbot/pkg/bus"
	"pbot/pkg/config"
	"pbot/pkg/modules/fwd"
	"pbot/pkg/telegram"
	"pbot/pkg/telegram/telegramtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var archive = telegram.ChatRef{ID: 900, AccessHash: 90, Kind: telegram.ChatSupergroup, Title: "Archive"}

func TestEnabledModulesKeepsConfiguredOrder(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Modules: config.ModulesConfig{
		Enabled:   []string{config.ModuleGetInfo, config.ModuleFwd, config.ModuleAddRank},
		FwdTarget: -1000000000900,
	}}
	conn := &telegramtest.Conn{Chats: []telegram.ChatRef{{ID: 5, Kind: telegram.ChatUser}, archive}}

	handles, err := enabledModules(context.Background(), cfg, conn, nil, testLogger())
	if err != nil {
		t.Fatalf("enabledModules() error = %v", err)
	}
	t.Cleanup(func() {
		for _, h := range handles {
			h.Stop()
		}
	})

	names := make([]string, 0, len(handles))
	for _, h := range handles {
		names = append(names, h.Name())
	}
	if got := strings.Join(names, ","); got != "getinfo,fwd,addrank" {
		t.Fatalf("module order = %q", got)
	}
}

func TestEnabledModulesFailsForUnknownTarget(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Modules: config.ModulesConfig{Enabled: []string{config.ModuleFwd}, FwdTarget: 42}}
	_, err := enabledModules(context.Background(), cfg, &telegramtest.Conn{}, nil, testLogger())
	if !errors.Is(err, telegram.ErrChatNotFound) {
		t.Fatalf("enabledModules() error = %v, want ErrChatNotFound", err)
	}
}

func TestEnabledModulesRequiresAtLeastOne(t *testing.T) {
	t.Parallel()

	if _, err := enabledModules(context.Background(), &config.Config{}, &telegramtest.Conn{}, nil, testLogger()); err == nil {
		t.Fatal("expected error when no modules are enabled")
	}
}

func TestServeForwardsUntilStreamEnds(t *testing.T) {
	t.Parallel()

	owner := telegram.UserRef{ID: 1, Self: true}
	group := telegram.ChatRef{ID: 100, Kind: telegram.ChatSupergroup}
	conn := &telegramtest.Conn{Chats: []telegram.ChatRef{archive}, SelfUser: owner}
	conn.QueueBatch(
		telegram.Update{Kind: telegram.KindDeleteMessage},
		telegram.NewMessageUpdate(&telegram.Message{ID: 11, Text: fwd.Command, Chat: group, Sender: &owner, Out: true, ReplyToID: 10}),
	)

	cfg := &config.Config{Modules: config.ModulesConfig{Enabled: []string{config.ModuleFwd}, FwdTarget: 900}}
	events := bus.New()
	t.Cleanup(events.Close)

	if err := serve(context.Background(), cfg, conn, nil, nil, events, testLogger()); err != nil {
		t.Fatalf("serve() error = %v", err)
	}

	forwards := conn.CallsOf(telegramtest.OpForward)
	if len(forwards) != 1 || forwards[0].MessageID != 10 || forwards[0].Target != archive {
		t.Fatalf("forwards = %+v", forwards)
	}
	edits := conn.CallsOf(telegramtest.OpEdit)
	if len(edits) != 1 || edits[0].Text != fwd.TextForwarded {
		t.Fatalf("edits = %+v", edits)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServeReportsReadyWhileDispatching(t *testing.T) {
	conn := &telegramtest.Conn{Block: true, SelfUser: telegram.UserRef{ID: 1, Self: true}}
	cfg := &config.Config{
		Modules: config.ModulesConfig{Enabled: []string{config.ModuleGetInfo}},
		Status:  config.StatusConfig{Addr: freeAddr(t)},
	}
	events := bus.New()
	t.Cleanup(events.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, conn, nil, nil, events, testLogger()) }()

	select {
	case <-conn.Blocked():
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never waited for updates")
	}

	client := &http.Client{Timeout: time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + cfg.Status.Addr + "/readyz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestRenderChats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderChats(&buf, []telegram.ChatRef{archive, {ID: 5, Kind: telegram.ChatUser, Title: "Ada"}})

	out := buf.String()
	for _, want := range []string{"ID", "KIND", "900", "supergroup", "Archive", "Ada"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
