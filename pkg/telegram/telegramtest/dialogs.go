package telegramtest

import (
	"context"

	"pbot/pkg/telegram"
)

// Dialogs iterates over a fixed set of chats and counts how far it was advanced.
type Dialogs struct {
	chats []telegram.ChatRef
	pos   int
	err   error

	Scanned int
}

// NewDialogs returns an iterator over chats that reports err once exhausted.
func NewDialogs(chats []telegram.ChatRef, err error) *Dialogs {
	return &Dialogs{chats: chats, err: err, pos: -1}
}

func (d *Dialogs) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		d.err = err
		return false
	}
	if d.pos+1 >= len(d.chats) {
		return false
	}
	d.pos++
	d.Scanned++
	return true
}

func (d *Dialogs) Value() telegram.ChatRef {
	if d.pos < 0 || d.pos >= len(d.chats) {
		return telegram.ChatRef{}
	}
	return d.chats[d.pos]
}

func (d *Dialogs) Err() error {
	return d.err
}

var _ telegram.DialogIter = (*Dialogs)(nil)
