package telegram

import (
	"context"
	"fmt"
)

// DialogIter walks the account's chats lazily, fetching further pages on demand.
type DialogIter interface {
	Next(ctx context.Context) bool
	Value() ChatRef
	Err() error
}

// ScanDialogs returns the first chat whose id matches id. It never advances the
// iterator past the match and returns ErrChatNotFound once the iterator is exhausted.
//
// id may be given in bot API form (-100 prefix for channels, negative for groups).
func ScanDialogs(ctx context.Context, iter DialogIter, id int64) (ChatRef, error) {
	want := NormalizeChatID(id)
	for iter.Next(ctx) {
		chat := iter.Value()
		if chat.ID == want {
			return chat, nil
		}
	}
	if err := iter.Err(); err != nil {
		return ChatRef{}, NewPlatformError("resolve chat", err)
	}

	return ChatRef{}, NewPlatformError("resolve chat", fmt.Errorf("%w: %d", ErrChatNotFound, id))
}

// CollectDialogs drains iter into a slice.
func CollectDialogs(ctx context.Context, iter DialogIter) ([]ChatRef, error) {
	var chats []ChatRef
	for iter.Next(ctx) {
		chats = append(chats, iter.Value())
	}
	if err := iter.Err(); err != nil {
		return chats, NewPlatformError("list chats", err)
	}
	return chats, nil
}

const channelIDOffset = 1_000_000_000_000

// NormalizeChatID converts bot API style ids into bare MTProto ids.
func NormalizeChatID(id int64) int64 {
	switch {
	case id <= -channelIDOffset:
		return -id - channelIDOffset
	case id < 0:
		return -id
	default:
		return id
	}
}
