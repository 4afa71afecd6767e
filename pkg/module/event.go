package module

import (
	"context"
	"sync"

	"pbot/pkg/telegram"
)

// SharedEvent is one event shared by reference between every module handling it.
//
// Readers may run concurrently. Update takes the exclusive lock: fn must not wait on
// another module while holding it, and must not call View or Snapshot on the same event.
type SharedEvent struct {
	mu  sync.RWMutex
	msg *telegram.Message
}

func NewSharedEvent(msg *telegram.Message) *SharedEvent {
	return &SharedEvent{msg: msg}
}

// Snapshot returns a copy of the current message.
func (e *SharedEvent) Snapshot() *telegram.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.msg.Clone()
}

// View calls fn with the message under the read lock. fn must not retain or modify it.
func (e *SharedEvent) View(fn func(msg *telegram.Message)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.msg)
}

// Update calls fn with the message under the write lock. The local copy is kept in sync
// with remote edits made inside fn.
func (e *SharedEvent) Update(ctx context.Context, fn func(ctx context.Context, msg *telegram.Message) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(ctx, e.msg)
}
