package telegram

import (
	"strings"
	"time"
)

// ChatKind distinguishes the peer types a message can live in.
type ChatKind string

const (
	ChatUser       ChatKind = "user"
	ChatGroup      ChatKind = "group"
	ChatChannel    ChatKind = "channel"
	ChatSupergroup ChatKind = "supergroup"
)

// ChatRef identifies a chat together with the credentials needed to address it.
type ChatRef struct {
	ID         int64    `json:"id"`
	AccessHash int64    `json:"-"`
	Kind       ChatKind `json:"kind"`
	Title      string   `json:"title,omitempty"`
}

// IsChannel reports whether the chat is addressed through the channels API.
func (c ChatRef) IsChannel() bool {
	return c.Kind == ChatChannel || c.Kind == ChatSupergroup
}

func (c ChatRef) String() string {
	if c.Title == "" {
		return string(c.Kind) + ":" + formatID(c.ID)
	}
	return c.Title + " (" + string(c.Kind) + ":" + formatID(c.ID) + ")"
}

// UserRef identifies a user.
type UserRef struct {
	ID         int64  `json:"id"`
	AccessHash int64  `json:"-"`
	Name       string `json:"name,omitempty"`
	Username   string `json:"username,omitempty"`
	Self       bool   `json:"self,omitempty"`
}

// FullName returns the display name, falling back to the username and then the id.
func (u UserRef) FullName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return formatID(u.ID)
}

// Message is a chat message as seen by modules.
type Message struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Chat      ChatRef   `json:"chat"`
	Sender    *UserRef  `json:"sender,omitempty"`
	ReplyToID int       `json:"reply_to_id,omitempty"`
	Out       bool      `json:"out,omitempty"`
	Date      time.Time `json:"date"`
}

// FromOwner reports whether the logged-in account sent the message.
func (m *Message) FromOwner() bool {
	if m == nil {
		return false
	}
	if m.Out {
		return true
	}
	return m.Sender != nil && m.Sender.Self
}

// ReplyTarget returns the id of the replied-to message, if any.
func (m *Message) ReplyTarget() (int, bool) {
	if m == nil || m.ReplyToID <= 0 {
		return 0, false
	}
	return m.ReplyToID, true
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Sender != nil {
		sender := *m.Sender
		clone.Sender = &sender
	}
	return &clone
}

// UpdateKind is the classification of one inbound update.
type UpdateKind string

const (
	KindNewMessage    UpdateKind = "new_message"
	KindEditMessage   UpdateKind = "edit_message"
	KindDeleteMessage UpdateKind = "delete_message"
	KindOther         UpdateKind = "other"
)

// Update is one inbound occurrence reported by the platform.
//
// Raw carries the platform type name for updates that are not messages.
type Update struct {
	Kind    UpdateKind
	Message *Message
	Raw     string
}

// NewMessageUpdate wraps a message as a new-message update.
func NewMessageUpdate(msg *Message) Update {
	return Update{Kind: KindNewMessage, Message: msg}
}

// ForwardReceipt describes the result of a forward command.
type ForwardReceipt struct {
	Target     ChatRef
	MessageIDs []int
}

// MessageReceipt describes the result of a send command.
type MessageReceipt struct {
	Chat      ChatRef
	MessageID int
}
