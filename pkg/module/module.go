// Package module defines the contract every pluggable feature implements and the
// mailbox task that runs each activated instance.
package module

import (
	"context"
	"errors"
	"fmt"

	"pbot/pkg/telegram"
)

// Module handles inbound messages. Implementations ignore messages that are not meant
// for them by returning nil.
type Module interface {
	// Name is stable and non-empty for the lifetime of the instance.
	Name() string
	Handle(ctx context.Context, msg Message) error
}

// Starter is implemented by modules that want a hook when they are activated.
type Starter interface {
	OnStart()
}

// Stopper is implemented by modules that want a hook when they are torn down.
type Stopper interface {
	OnStop()
}

// Message is the envelope delivered to every module for one event.
type Message struct {
	Conn  telegram.Conn
	Event *SharedEvent
}

// ErrStopped is returned by Deliver after the handle has been stopped.
var ErrStopped = errors.New("module stopped")

// Error wraps a failure reported by one module.
type Error struct {
	Module string
	Err    error
	// Panic is set when the failure was a recovered panic.
	Panic bool
}

func (e *Error) Error() string {
	if e.Panic {
		return fmt.Sprintf("module %s panicked: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("module %s: %v", e.Module, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Edit replaces the text of the event's message remotely and keeps the shared copy in sync.
func (m Message) Edit(ctx context.Context, text string) error {
	return m.Event.Update(ctx, func(ctx context.Context, msg *telegram.Message) error {
		if err := m.Conn.Edit(ctx, msg, text); err != nil {
			return err
		}
		msg.Text = text
		return nil
	})
}
