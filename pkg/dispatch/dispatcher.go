// Package dispatch routes inbound updates to every activated module.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"pbot/pkg/bus"
	"pbot/pkg/module"
	"pbot/pkg/telegram"
)

// Dispatcher owns the module registry and the shared connection.
type Dispatcher struct {
	conn     telegram.Conn
	registry *module.Registry
	log      *slog.Logger
	events   *bus.Bus
}

type Option func(*Dispatcher)

// WithBus publishes dispatch outcomes to b.
func WithBus(b *bus.Bus) Option {
	return func(d *Dispatcher) {
		d.events = b
	}
}

func New(conn telegram.Conn, registry *module.Registry, log *slog.Logger, opts ...Option) (*Dispatcher, error) {
	if conn == nil {
		return nil, errors.New("dispatcher: nil connection")
	}
	if registry == nil {
		return nil, errors.New("dispatcher: nil module registry")
	}
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		conn:     conn,
		registry: registry,
		log:      log.With("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ModuleFailure is one module's failure for one event.
type ModuleFailure struct {
	Module    string
	ChatID    int64
	MessageID int
	Err       error
}

// Report summarizes one Dispatch call.
type Report struct {
	// Events counts updates that were delivered to the modules.
	Events    int
	Unhandled []error
	Failures  []ModuleFailure
}

// Dispatch processes the batch in order. Each event is delivered to every module
// concurrently and the next event starts only after all of them finished. Failures are
// logged and reported, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []telegram.Update) Report {
	var report Report
	for _, update := range batch {
		msg, err := telegram.Classify(update)
		if err != nil {
			d.log.Warn("Failed to handle update", "error", err)
			report.Unhandled = append(report.Unhandled, err)
			d.events.Publish(ctx, bus.Event{
				Type:  bus.EventUnhandled,
				Error: err.Error(),
				Payload: map[string]string{
					"kind": string(update.Kind),
				},
			})
			continue
		}

		report.Events++
		report.Failures = append(report.Failures, d.fanOut(ctx, msg)...)
	}
	return report
}

func (d *Dispatcher) fanOut(ctx context.Context, msg *telegram.Message) []ModuleFailure {
	envelope := module.Message{
		Conn:  d.conn,
		Event: module.NewSharedEvent(msg),
	}

	var (
		mu       sync.Mutex
		failures []ModuleFailure
	)

	// modules share no cancellation; a failure never stops a sibling.
	var g errgroup.Group
	for _, h := range d.registry.Handles() {
		g.Go(func() error {
			err := h.Deliver(ctx, envelope)
			if err == nil {
				return nil
			}

			d.log.Error("Module failed",
				"module", h.Name(),
				"chat_id", msg.Chat.ID,
				"message_id", msg.ID,
				"error", err,
			)
			d.events.Publish(ctx, bus.Event{
				Type:      bus.EventModuleFailed,
				Module:    h.Name(),
				ChatID:    msg.Chat.ID,
				MessageID: msg.ID,
				Error:     err.Error(),
			})

			mu.Lock()
			failures = append(failures, ModuleFailure{
				Module:    h.Name(),
				ChatID:    msg.Chat.ID,
				MessageID: msg.ID,
				Err:       err,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.events.Publish(ctx, bus.Event{
		Type:      bus.EventDispatched,
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	})
	return failures
}

// Run pulls batches until ctx is cancelled or the stream ends. Cancellation wins over a
// batch that arrives at the same time; a batch whose dispatch started always completes.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("Dispatcher started", "modules", d.registry.Names())
	d.events.Publish(ctx, bus.Event{Type: bus.EventLoopStarted})
	defer func() {
		d.log.Info("Dispatcher stopped")
		d.events.Publish(context.WithoutCancel(ctx), bus.Event{Type: bus.EventLoopStopped})
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		batch, ok, err := d.conn.NextBatch(ctx)
		if ctx.Err() != nil {
			d.log.Debug("Shutdown requested, discarding batch", "updates", len(batch))
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive updates: %w", err)
		}
		if !ok {
			d.log.Info("Update stream ended")
			return nil
		}

		report := d.Dispatch(context.WithoutCancel(ctx), batch)
		d.log.Debug("Batch dispatched",
			"events", report.Events,
			"unhandled", len(report.Unhandled),
			"failures", len(report.Failures),
		)
	}
}
