// Package telegramtest provides in-memory stand-ins for the platform connection.
package telegramtest

import (
	"context"
	"sync"

	"pbot/pkg/telegram"
)

const (
	OpForward      = "forward"
	OpSend         = "send"
	OpEdit         = "edit"
	OpSetAdminRank = "set_admin_rank"
	OpResolveChat  = "resolve_chat"
	OpReplyTo      = "reply_to"
)

// Call records one command issued against a Conn.
type Call struct {
	Op        string
	Chat      telegram.ChatRef
	Target    telegram.ChatRef
	MessageID int
	Text      string
	User      telegram.UserRef
}

// Conn is a scripted telegram.Conn. Zero value is usable; set fields before sharing it.
type Conn struct {
	// Chats backs ResolveChat.
	Chats []telegram.ChatRef
	// Replies maps a replied-to message id to the message ReplyTo returns.
	Replies map[int]*telegram.Message
	// BatchErr is returned once queued batches are exhausted.
	BatchErr error
	// Block makes NextBatch wait for ctx instead of reporting end-of-stream.
	Block bool
	SelfUser telegram.UserRef

	ForwardErr error
	SendErr    error
	EditErr    error
	RankErr    error
	ReplyErr   error

	mu        sync.Mutex
	batches   [][]telegram.Update
	calls     []Call
	blocked   chan struct{}
	blockOnce sync.Once
}

// QueueBatch appends a batch returned by a later NextBatch call.
func (c *Conn) QueueBatch(batch ...telegram.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
}

// Blocked is closed once NextBatch starts waiting with no batch available.
func (c *Conn) Blocked() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocked == nil {
		c.blocked = make(chan struct{})
	}
	return c.blocked
}

// Calls returns a snapshot of the recorded commands.
func (c *Conn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsOf returns the recorded commands with the given op.
func (c *Conn) CallsOf(op string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

func (c *Conn) record(call Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *Conn) NextBatch(ctx context.Context) ([]telegram.Update, bool, error) {
	c.mu.Lock()
	if len(c.batches) > 0 {
		batch := c.batches[0]
		c.batches = c.batches[1:]
		c.mu.Unlock()
		return batch, true, nil
	}
	if c.blocked == nil {
		c.blocked = make(chan struct{})
	}
	blocked := c.blocked
	c.mu.Unlock()

	if c.BatchErr != nil {
		return nil, false, c.BatchErr
	}
	if !c.Block {
		return nil, false, nil
	}

	c.blockOnce.Do(func() { close(blocked) })
	<-ctx.Done()
	return nil, false, nil
}

func (c *Conn) Forward(_ context.Context, to telegram.ChatRef, messageID int, from telegram.ChatRef) (telegram.ForwardReceipt, error) {
	c.record(Call{Op: OpForward, Target: to, MessageID: messageID, Chat: from})
	if c.ForwardErr != nil {
		return telegram.ForwardReceipt{}, c.ForwardErr
	}
	return telegram.ForwardReceipt{Target: to, MessageIDs: []int{messageID}}, nil
}

func (c *Conn) Send(_ context.Context, chat telegram.ChatRef, text string) (telegram.MessageReceipt, error) {
	c.record(Call{Op: OpSend, Chat: chat, Text: text})
	if c.SendErr != nil {
		return telegram.MessageReceipt{}, c.SendErr
	}
	return telegram.MessageReceipt{Chat: chat, MessageID: len(c.Calls())}, nil
}

func (c *Conn) Edit(_ context.Context, msg *telegram.Message, text string) error {
	c.record(Call{Op: OpEdit, Chat: msg.Chat, MessageID: msg.ID, Text: text})
	return c.EditErr
}

func (c *Conn) SetAdminRank(_ context.Context, channel telegram.ChatRef, user telegram.UserRef, rank string) error {
	c.record(Call{Op: OpSetAdminRank, Chat: channel, User: user, Text: rank})
	return c.RankErr
}

func (c *Conn) ResolveChat(ctx context.Context, id int64) (telegram.ChatRef, error) {
	c.record(Call{Op: OpResolveChat, MessageID: int(id)})
	return telegram.ScanDialogs(ctx, NewDialogs(c.Chats, nil), id)
}

func (c *Conn) ReplyTo(_ context.Context, msg *telegram.Message) (*telegram.Message, error) {
	c.record(Call{Op: OpReplyTo, Chat: msg.Chat, MessageID: msg.ID})
	if c.ReplyErr != nil {
		return nil, c.ReplyErr
	}
	id, ok := msg.ReplyTarget()
	if !ok {
		return nil, nil
	}
	return c.Replies[id].Clone(), nil
}

func (c *Conn) Self() telegram.UserRef {
	return c.SelfUser
}

var _ telegram.Conn = (*Conn)(nil)
