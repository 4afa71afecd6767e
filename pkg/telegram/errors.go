package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tgerr"
)

const (
	ErrorNotFound    = "not_found"
	ErrorFloodWait   = "flood_wait"
	ErrorRPC         = "rpc"
	ErrorTransport   = "transport"
	ErrorUnsupported = "unsupported"
	ErrorCanceled    = "canceled"
)

var (
	// ErrChatNotFound is returned when a dialog scan exhausts without a match.
	ErrChatNotFound = errors.New("no such chat")
	// ErrUnhandledUpdate matches every UnhandledUpdateError.
	ErrUnhandledUpdate = errors.New("unhandled update")
	// ErrNotConnected is returned by commands issued before the session is ready.
	ErrNotConnected = errors.New("telegram client is not connected")
)

// PlatformError is a categorized failure of one remote command.
type PlatformError struct {
	Op       string
	Category string
	// RetryAfter is set for flood-wait failures.
	RetryAfter time.Duration
	Err        error
}

func (e *PlatformError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Category)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Category, e.Err)
}

func (e *PlatformError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewPlatformError categorizes err as the failure of op. It returns nil for a nil err.
func NewPlatformError(op string, err error) error {
	if err == nil {
		return nil
	}

	var existing *PlatformError
	if errors.As(err, &existing) {
		return err
	}

	perr := &PlatformError{Op: op, Category: CategoryFromError(err), Err: err}
	if d, ok := tgerr.AsFloodWait(err); ok {
		perr.RetryAfter = d
	}
	return perr
}

// CategoryFromError returns the stable category for an error.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var perr *PlatformError
	if errors.As(err, &perr) {
		return perr.Category
	}

	switch {
	case errors.Is(err, ErrChatNotFound):
		return ErrorNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCanceled
	}

	if _, ok := tgerr.AsFloodWait(err); ok {
		return ErrorFloodWait
	}
	if rpcErr, ok := tgerr.As(err); ok {
		if rpcErr.IsOneOf(notFoundTypes...) || strings.HasSuffix(rpcErr.Type, "_NOT_FOUND") || rpcErr.Code == 404 {
			return ErrorNotFound
		}
		return ErrorRPC
	}

	return ErrorTransport
}

// notFoundTypes name a chat or message that is gone or unknown to this account.
// Other *_INVALID errors reject the request itself and stay rpc.
var notFoundTypes = []string{
	"PEER_ID_INVALID",
	"CHANNEL_INVALID",
	"CHANNEL_PRIVATE",
	"CHAT_ID_INVALID",
	"USER_ID_INVALID",
	"MSG_ID_INVALID",
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category string) bool {
	return err != nil && CategoryFromError(err) == category
}

// UnhandledUpdateError rejects an update the dispatcher does not process.
type UnhandledUpdateError struct {
	Kind UpdateKind
	Raw  string
}

func (e *UnhandledUpdateError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("got an unhandled update: %s (%s)", e.Kind, e.Raw)
	}
	return fmt.Sprintf("got an unhandled update: %s", e.Kind)
}

func (e *UnhandledUpdateError) Is(target error) bool {
	return target == ErrUnhandledUpdate
}

// Classify returns the message of a new-message update and rejects every other kind.
func Classify(update Update) (*Message, error) {
	if update.Kind != KindNewMessage || update.Message == nil {
		return nil, &UnhandledUpdateError{Kind: update.Kind, Raw: update.Raw}
	}
	return update.Message, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
