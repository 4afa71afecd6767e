package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// peerResolver turns peer ids into addressable refs through the peers manager. Entities
// carried by updates, dialogs and replies are applied to it before resolving.
type peerResolver struct {
	peers *peers.Manager
	log   *slog.Logger
}

func newPeerResolver(api *tg.Client, log *slog.Logger, protoLog *zap.Logger) *peerResolver {
	return &peerResolver{
		peers: peers.Options{Cache: newEntityCache(), Logger: protoLog}.Build(api),
		log:   log,
	}
}

// newEntityCache returns an in-memory cache whose maps survive later saves.
// InmemoryCache resets a map on every save until its channel-full map exists.
func newEntityCache() *peers.InmemoryCache {
	ctx := context.Background()
	cache := &peers.InmemoryCache{}
	_ = cache.SaveUsers(ctx)
	_ = cache.SaveUserFulls(ctx)
	_ = cache.SaveChats(ctx)
	_ = cache.SaveChatFulls(ctx)
	_ = cache.SaveChannels(ctx)
	_ = cache.SaveChannelFulls(ctx)
	return cache
}

func (r *peerResolver) apply(ctx context.Context, users []tg.UserClass, chats []tg.ChatClass) {
	if len(users) == 0 && len(chats) == 0 {
		return
	}
	if err := r.peers.Apply(ctx, users, chats); err != nil {
		r.log.Warn("Failed to store peers", "error", err)
	}
}

func (r *peerResolver) user(ctx context.Context, id int64) UserRef {
	user, err := r.peers.ResolveUserID(ctx, id)
	if err != nil {
		r.log.Debug("User not resolved", "user_id", id, "error", err)
		return UserRef{ID: id}
	}
	return userRef(user.Raw())
}

func (r *peerResolver) chat(ctx context.Context, peer tg.PeerClass) ChatRef {
	switch peer := peer.(type) {
	case *tg.PeerUser:
		ref := ChatRef{ID: peer.UserID, Kind: ChatUser}
		user, err := r.peers.ResolveUserID(ctx, peer.UserID)
		if err != nil {
			r.log.Debug("User not resolved", "user_id", peer.UserID, "error", err)
			return ref
		}
		u := userRef(user.Raw())
		ref.AccessHash, ref.Title = u.AccessHash, u.FullName()
		return ref
	case *tg.PeerChat:
		ref := ChatRef{ID: peer.ChatID, Kind: ChatGroup}
		chat, err := r.peers.ResolveChatID(ctx, peer.ChatID)
		if err != nil {
			r.log.Debug("Chat not resolved", "chat_id", peer.ChatID, "error", err)
			return ref
		}
		ref.Title = chat.Raw().Title
		return ref
	case *tg.PeerChannel:
		channel, err := r.peers.ResolveChannelID(ctx, peer.ChannelID)
		if err != nil {
			r.log.Debug("Channel not resolved", "channel_id", peer.ChannelID, "error", err)
			return ChatRef{ID: peer.ChannelID, Kind: ChatChannel}
		}
		return channelRef(channel.Raw())
	default:
		return ChatRef{}
	}
}

func userRef(user *tg.User) UserRef {
	return UserRef{
		ID:         user.ID,
		AccessHash: user.AccessHash,
		Name:       strings.TrimSpace(user.FirstName + " " + user.LastName),
		Username:   user.Username,
		Self:       user.Self,
	}
}

func channelRef(channel *tg.Channel) ChatRef {
	kind := ChatChannel
	if channel.Megagroup {
		kind = ChatSupergroup
	}
	return ChatRef{ID: channel.ID, AccessHash: channel.AccessHash, Kind: kind, Title: channel.Title}
}

// convertMessage maps a platform message. It returns false for empty and service messages.
func (r *peerResolver) convertMessage(ctx context.Context, class tg.MessageClass, self UserRef) (*Message, bool) {
	msg, ok := class.(*tg.Message)
	if !ok {
		return nil, false
	}

	out := &Message{
		ID:   msg.ID,
		Text: msg.Message,
		Chat: r.chat(ctx, msg.PeerID),
		Out:  msg.Out,
		Date: time.Unix(int64(msg.Date), 0).UTC(),
	}

	if header, ok := msg.GetReplyTo(); ok {
		if reply, ok := header.(*tg.MessageReplyHeader); ok {
			out.ReplyToID = reply.ReplyToMsgID
		}
	}

	switch {
	case msg.Out:
		sender := self
		out.Sender = &sender
	default:
		if from, ok := msg.GetFromID(); ok {
			if peer, ok := from.(*tg.PeerUser); ok {
				sender := r.user(ctx, peer.UserID)
				out.Sender = &sender
			}
		} else if peer, ok := msg.PeerID.(*tg.PeerUser); ok {
			// private chats omit from_id for the other side.
			sender := r.user(ctx, peer.UserID)
			out.Sender = &sender
		}
	}
	if out.Sender != nil && self.ID != 0 && out.Sender.ID == self.ID {
		out.Sender.Self = true
	}

	return out, true
}

// convertUpdates turns one platform update container into a batch.
func (r *peerResolver) convertUpdates(ctx context.Context, class tg.UpdatesClass, self UserRef) []Update {
	var (
		updates []tg.UpdateClass
		users   []tg.UserClass
		chats   []tg.ChatClass
	)

	switch u := class.(type) {
	case *tg.Updates:
		updates, users, chats = u.Updates, u.Users, u.Chats
	case *tg.UpdatesCombined:
		updates, users, chats = u.Updates, u.Users, u.Chats
	case *tg.UpdateShort:
		updates = []tg.UpdateClass{u.Update}
	default:
		return []Update{{Kind: KindOther, Raw: class.TypeName()}}
	}

	r.apply(ctx, users, chats)

	batch := make([]Update, 0, len(updates))
	for _, update := range updates {
		batch = append(batch, r.convertUpdate(ctx, update, self))
	}
	return batch
}

func (r *peerResolver) convertUpdate(ctx context.Context, update tg.UpdateClass, self UserRef) Update {
	var (
		kind  UpdateKind
		class tg.MessageClass
	)

	switch u := update.(type) {
	case *tg.UpdateNewMessage:
		kind, class = KindNewMessage, u.Message
	case *tg.UpdateNewChannelMessage:
		kind, class = KindNewMessage, u.Message
	case *tg.UpdateEditMessage:
		kind, class = KindEditMessage, u.Message
	case *tg.UpdateEditChannelMessage:
		kind, class = KindEditMessage, u.Message
	case *tg.UpdateDeleteMessages, *tg.UpdateDeleteChannelMessages:
		return Update{Kind: KindDeleteMessage, Raw: update.TypeName()}
	default:
		return Update{Kind: KindOther, Raw: update.TypeName()}
	}

	msg, ok := r.convertMessage(ctx, class, self)
	if !ok {
		return Update{Kind: KindOther, Raw: class.TypeName()}
	}
	return Update{Kind: kind, Message: msg}
}

// inputPeer builds the addressable form of a chat.
func inputPeer(chat ChatRef) tg.InputPeerClass {
	switch chat.Kind {
	case ChatUser:
		return &tg.InputPeerUser{UserID: chat.ID, AccessHash: chat.AccessHash}
	case ChatGroup:
		return &tg.InputPeerChat{ChatID: chat.ID}
	case ChatChannel, ChatSupergroup:
		return &tg.InputPeerChannel{ChannelID: chat.ID, AccessHash: chat.AccessHash}
	default:
		return &tg.InputPeerEmpty{}
	}
}

func inputChannel(chat ChatRef) tg.InputChannelClass {
	return &tg.InputChannel{ChannelID: chat.ID, AccessHash: chat.AccessHash}
}

func inputUser(user UserRef) tg.InputUserClass {
	if user.Self {
		return &tg.InputUserSelf{}
	}
	return &tg.InputUser{UserID: user.ID, AccessHash: user.AccessHash}
}

// sentMessageIDs extracts the ids assigned to messages created by a command.
func sentMessageIDs(class tg.UpdatesClass) []int {
	var ids []int
	switch u := class.(type) {
	case *tg.UpdateShortSentMessage:
		ids = append(ids, u.ID)
	case *tg.Updates:
		for _, update := range u.Updates {
			if sent, ok := update.(*tg.UpdateMessageID); ok {
				ids = append(ids, sent.ID)
			}
		}
	}
	return ids
}
