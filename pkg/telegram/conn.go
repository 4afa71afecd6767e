package telegram

import "context"

// Conn is the shared handle to the authenticated platform session.
//
// Every method may be called concurrently; implementations serialize the remote calls so
// callers observe one linear command order. No ordering is promised between callers.
type Conn interface {
	// NextBatch blocks until the next batch of updates arrives. It returns false once the
	// stream has ended or ctx is done.
	NextBatch(ctx context.Context) ([]Update, bool, error)
	Forward(ctx context.Context, to ChatRef, messageID int, from ChatRef) (ForwardReceipt, error)
	Send(ctx context.Context, chat ChatRef, text string) (MessageReceipt, error)
	Edit(ctx context.Context, msg *Message, text string) error
	SetAdminRank(ctx context.Context, channel ChatRef, user UserRef, rank string) error
	// ResolveChat scans the known chats in order and stops at the first id match.
	ResolveChat(ctx context.Context, id int64) (ChatRef, error)
	// ReplyTo fetches the message msg replies to. It returns nil when msg is not a reply or
	// the target no longer exists.
	ReplyTo(ctx context.Context, msg *Message) (*Message, error)
	Self() UserRef
}
