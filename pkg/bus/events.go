package bus

import "time"

type EventType string

const (
	EventLoopStarted   EventType = "loop_started"
	EventLoopStopped   EventType = "loop_stopped"
	EventDispatched    EventType = "event_dispatched"
	EventUnhandled     EventType = "update_unhandled"
	EventModuleFailed  EventType = "module_failed"
	EventScheduledSend EventType = "scheduled_send"
	EventScheduleFail  EventType = "scheduled_send_failed"
)

type Event struct {
	Type      EventType         `json:"type"`
	At        time.Time         `json:"at"`
	ChatID    int64             `json:"chat_id,omitempty"`
	MessageID int               `json:"message_id,omitempty"`
	Module    string            `json:"module,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Error     string            `json:"error,omitempty"`
}
