// Package schedule sends fixed messages on cron schedules, outside the dispatch loop.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"pbot/pkg/bus"
	"pbot/pkg/telegram"
)

// Entry is one scheduled send.
type Entry struct {
	Spec   string
	ChatID int64
	Text   string
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseEntries parses `<cron spec>|<chat id>|<text>` entries separated by `;`.
func ParseEntries(raw string) ([]Entry, error) {
	var (
		entries []Entry
		errs    []error
	)
	for i, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		fields := strings.SplitN(part, "|", 3)
		if len(fields) != 3 {
			errs = append(errs, fmt.Errorf("entry %d: want <spec>|<chat id>|<text>", i+1))
			continue
		}

		entry := Entry{Spec: strings.TrimSpace(fields[0]), Text: strings.TrimSpace(fields[2])}
		if _, err := parser.Parse(entry.Spec); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: invalid spec %q: %w", i+1, entry.Spec, err))
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil || id == 0 {
			errs = append(errs, fmt.Errorf("entry %d: invalid chat id %q", i+1, fields[1]))
			continue
		}
		entry.ChatID = id
		if entry.Text == "" {
			errs = append(errs, fmt.Errorf("entry %d: empty text", i+1))
			continue
		}

		entries = append(entries, entry)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	return entries, nil
}

// Scheduler runs entries against a connection.
type Scheduler struct {
	conn    telegram.Conn
	entries []Entry
	log     *slog.Logger
	events  *bus.Bus
	cron    *cron.Cron
}

func New(conn telegram.Conn, entries []Entry, log *slog.Logger, events *bus.Bus) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "schedule")
	return &Scheduler{
		conn:    conn,
		entries: entries,
		log:     log,
		events:  events,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLogger{log: log}),
			cron.WithChain(cron.Recover(cronLogger{log: log}), cron.SkipIfStillRunning(cronLogger{log: log})),
		),
	}
}

// Start resolves each entry's chat once and starts the cron runner. Sends use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, entry := range s.entries {
		chat, err := s.conn.ResolveChat(ctx, entry.ChatID)
		if err != nil {
			return fmt.Errorf("resolve scheduled chat %d: %w", entry.ChatID, err)
		}

		job := s.job(ctx, chat, entry)
		if _, err := s.cron.AddFunc(entry.Spec, job); err != nil {
			return fmt.Errorf("add schedule %q: %w", entry.Spec, err)
		}
		s.log.Info("Scheduled send registered", "spec", entry.Spec, "chat", chat.String())
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) job(ctx context.Context, chat telegram.ChatRef, entry Entry) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}

		receipt, err := s.conn.Send(ctx, chat, entry.Text)
		if err != nil {
			s.log.Error("Scheduled send failed", "chat_id", chat.ID, "spec", entry.Spec, "error", err)
			s.events.Publish(ctx, bus.Event{
				Type:   bus.EventScheduleFail,
				ChatID: chat.ID,
				Error:  err.Error(),
			})
			return
		}

		s.log.Info("Scheduled message sent", "chat_id", chat.ID, "message_id", receipt.MessageID)
		s.events.Publish(ctx, bus.Event{
			Type:      bus.EventScheduledSend,
			ChatID:    chat.ID,
			MessageID: receipt.MessageID,
		})
	}
}

// Stop halts the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
