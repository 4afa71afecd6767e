package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Factory builds a module instance from its configuration.
type Factory[C any] func(cfg C) (Module, error)

type delivery struct {
	ctx   context.Context
	msg   Message
	reply chan error
}

// Handle is the addressable running instance of one module. Messages delivered to a handle
// are processed one at a time in arrival order.
type Handle struct {
	name   string
	module Module
	log    *slog.Logger

	mailbox  chan delivery
	quit     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

// Activate constructs a module from cfg and starts it. Every call yields a distinct instance.
func Activate[C any](factory Factory[C], cfg C, log *slog.Logger) (*Handle, error) {
	if factory == nil {
		return nil, errors.New("activate module: nil factory")
	}
	m, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("activate module: %w", err)
	}
	return ActivateModule(m, log)
}

// ActivateModule starts an already constructed module.
func ActivateModule(m Module, log *slog.Logger) (*Handle, error) {
	if m == nil {
		return nil, errors.New("activate module: nil module")
	}
	name := m.Name()
	if name == "" {
		return nil, errors.New("activate module: empty module name")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handle{
		name:     name,
		module:   m,
		log:      log.With("component", "module", "module", name),
		mailbox:  make(chan delivery),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go h.loop()

	if s, ok := m.(Starter); ok {
		s.OnStart()
	}
	h.log.Info("Module started")
	return h, nil
}

func (h *Handle) Name() string {
	return h.name
}

// Deliver hands msg to the module and waits for its result. It returns ctx.Err() if ctx
// ends first and ErrStopped after Stop.
func (h *Handle) Deliver(ctx context.Context, msg Message) error {
	d := delivery{ctx: ctx, msg: msg, reply: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.quit:
		return ErrStopped
	case h.mailbox <- d:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-d.reply:
		return err
	}
}

// Stop ends the mailbox task and fires the module's stop hook. Safe to call repeatedly.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		<-h.finished
		if s, ok := h.module.(Stopper); ok {
			s.OnStop()
		}
		h.log.Info("Module stopped")
	})
}

func (h *Handle) loop() {
	defer close(h.finished)
	for {
		select {
		case <-h.quit:
			return
		case d := <-h.mailbox:
			d.reply <- h.invoke(d)
		}
	}
}

func (h *Handle) invoke(d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Module panicked", "panic", r, "stack", string(debug.Stack()))
			err = &Error{Module: h.name, Err: fmt.Errorf("%v", r), Panic: true}
		}
	}()

	if err := h.module.Handle(d.ctx, d.msg); err != nil {
		return &Error{Module: h.name, Err: err}
	}
	return nil
}
