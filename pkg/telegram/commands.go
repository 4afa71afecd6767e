package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
)

const dialogBatchSize = 100

// invoke paces and serializes one remote command and categorizes its failure.
func (c *Client) invoke(ctx context.Context, op string, fn func(api *tg.Client) error) error {
	api, _, ok := c.session()
	if !ok {
		return NewPlatformError(op, ErrNotConnected)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return NewPlatformError(op, err)
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if err := fn(api); err != nil {
		c.log.Debug("Command failed", "op", op, "error", err)
		return NewPlatformError(op, err)
	}
	return nil
}

func (c *Client) Forward(ctx context.Context, to ChatRef, messageID int, from ChatRef) (ForwardReceipt, error) {
	receipt := ForwardReceipt{Target: to}
	err := c.invoke(ctx, "forward message", func(api *tg.Client) error {
		res, err := api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
			FromPeer: inputPeer(from),
			ID:       []int{messageID},
			RandomID: []int64{rand.Int64()},
			ToPeer:   inputPeer(to),
		})
		if err != nil {
			return err
		}
		receipt.MessageIDs = sentMessageIDs(res)
		return nil
	})
	return receipt, err
}

func (c *Client) Send(ctx context.Context, chat ChatRef, text string) (MessageReceipt, error) {
	receipt := MessageReceipt{Chat: chat}
	err := c.invoke(ctx, "send message", func(*tg.Client) error {
		_, sender, _ := c.session()
		res, err := sender.To(inputPeer(chat)).Text(ctx, text)
		if err != nil {
			return err
		}
		if ids := sentMessageIDs(res); len(ids) > 0 {
			receipt.MessageID = ids[0]
		}
		return nil
	})
	return receipt, err
}

func (c *Client) Edit(ctx context.Context, msg *Message, text string) error {
	if msg == nil {
		return NewPlatformError("edit message", errors.New("nil message"))
	}
	return c.invoke(ctx, "edit message", func(*tg.Client) error {
		_, sender, _ := c.session()
		_, err := sender.To(inputPeer(msg.Chat)).Edit(msg.ID).Text(ctx, text)
		return err
	})
}

// SetAdminRank sets the custom admin title of user. Only channels and supergroups carry ranks.
func (c *Client) SetAdminRank(ctx context.Context, channel ChatRef, user UserRef, rank string) error {
	if !channel.IsChannel() {
		return &PlatformError{
			Op:       "set admin rank",
			Category: ErrorUnsupported,
			Err:      fmt.Errorf("chat %s does not support admin ranks", channel),
		}
	}
	return c.invoke(ctx, "set admin rank", func(api *tg.Client) error {
		_, err := api.ChannelsEditAdmin(ctx, &tg.ChannelsEditAdminRequest{
			Channel:     inputChannel(channel),
			UserID:      inputUser(user),
			AdminRights: tg.ChatAdminRights{Other: true},
			Rank:        rank,
		})
		return err
	})
}

func (c *Client) ResolveChat(ctx context.Context, id int64) (ChatRef, error) {
	var chat ChatRef
	err := c.invoke(ctx, "resolve chat", func(api *tg.Client) error {
		var err error
		chat, err = ScanDialogs(ctx, c.dialogs(api), id)
		return err
	})
	return chat, err
}

// ListChats returns every chat of the account in dialog order.
func (c *Client) ListChats(ctx context.Context) ([]ChatRef, error) {
	var chats []ChatRef
	err := c.invoke(ctx, "list chats", func(api *tg.Client) error {
		var err error
		chats, err = CollectDialogs(ctx, c.dialogs(api))
		return err
	})
	return chats, err
}

func (c *Client) ReplyTo(ctx context.Context, msg *Message) (*Message, error) {
	replyID, ok := msg.ReplyTarget()
	if !ok {
		return nil, nil
	}

	var reply *Message
	err := c.invoke(ctx, "get reply", func(api *tg.Client) error {
		ids := []tg.InputMessageClass{&tg.InputMessageID{ID: replyID}}

		var (
			res tg.MessagesMessagesClass
			err error
		)
		if msg.Chat.IsChannel() {
			res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
				Channel: inputChannel(msg.Chat),
				ID:      ids,
			})
		} else {
			res, err = api.MessagesGetMessages(ctx, ids)
		}
		if err != nil {
			return err
		}

		reply = c.firstMessage(ctx, res)
		return nil
	})
	return reply, err
}

func (c *Client) firstMessage(ctx context.Context, res tg.MessagesMessagesClass) *Message {
	var (
		messages []tg.MessageClass
		users    []tg.UserClass
		chats    []tg.ChatClass
	)
	switch r := res.(type) {
	case *tg.MessagesMessages:
		messages, users, chats = r.Messages, r.Users, r.Chats
	case *tg.MessagesMessagesSlice:
		messages, users, chats = r.Messages, r.Users, r.Chats
	case *tg.MessagesChannelMessages:
		messages, users, chats = r.Messages, r.Users, r.Chats
	default:
		return nil
	}

	c.peers.apply(ctx, users, chats)
	for _, class := range messages {
		if msg, ok := c.peers.convertMessage(ctx, class, c.Self()); ok {
			return msg
		}
	}
	return nil
}

func (c *Client) dialogs(api *tg.Client) DialogIter {
	return &dialogIter{
		iter:  query.GetDialogs(api).BatchSize(dialogBatchSize).Iter(),
		peers: c.peers,
	}
}

// dialogIter adapts the paged dialog query to DialogIter.
type dialogIter struct {
	iter  *dialogs.Iterator
	peers *peerResolver
	cur   ChatRef
}

func (d *dialogIter) Next(ctx context.Context) bool {
	for d.iter.Next(ctx) {
		if chat, ok := d.convert(ctx, d.iter.Value()); ok {
			d.cur = chat
			return true
		}
	}
	return false
}

func (d *dialogIter) Value() ChatRef { return d.cur }

func (d *dialogIter) Err() error { return d.iter.Err() }

func (d *dialogIter) convert(ctx context.Context, elem dialogs.Elem) (ChatRef, bool) {
	switch p := elem.Peer.(type) {
	case *tg.InputPeerUser:
		user, ok := elem.Entities.Users()[p.UserID]
		if !ok {
			return ChatRef{}, false
		}
		d.peers.apply(ctx, []tg.UserClass{user}, nil)
		ref := userRef(user)
		return ChatRef{ID: ref.ID, AccessHash: ref.AccessHash, Kind: ChatUser, Title: ref.FullName()}, true
	case *tg.InputPeerChat:
		chat, ok := elem.Entities.Chats()[p.ChatID]
		if !ok {
			return ChatRef{}, false
		}
		d.peers.apply(ctx, nil, []tg.ChatClass{chat})
		return ChatRef{ID: chat.ID, Kind: ChatGroup, Title: chat.Title}, true
	case *tg.InputPeerChannel:
		channel, ok := elem.Entities.Channels()[p.ChannelID]
		if !ok {
			return ChatRef{}, false
		}
		d.peers.apply(ctx, nil, []tg.ChatClass{channel})
		return channelRef(channel), true
	default:
		return ChatRef{}, false
	}
}
