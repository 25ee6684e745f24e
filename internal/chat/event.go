package chat

import "time"

// EventType distinguishes inbound events
type EventType string

const (
	EventMessage  EventType = "message"
	EventReply    EventType = "message_reply"
	EventBotAdded EventType = "bot_added"
)

// RepliedMessage is the message an inbound event replies to
type RepliedMessage struct {
	MessageID string
	SenderID  string
	Body      string
}

// Event is one inbound event from the transport
type Event struct {
	Type           EventType
	ConversationID string
	SenderID       string
	Body           string
	MessageID      string
	IsGroup        bool
	Replied        *RepliedMessage
	Mentions       []string
	ReceivedAt     time.Time
	// RequestID is assigned when the event enters the pipeline
	RequestID      string
}

// GroupID returns the conversation ID for group conversations and "" for
// direct messages.
func (e *Event) GroupID() string {
	if e.IsGroup {
		return e.ConversationID
	}
	return ""
}

// IsReply reports whether the event quotes an earlier message
func (e *Event) IsReply() bool {
	return e.Replied != nil
}

// GroupInfo describes a group conversation
type GroupInfo struct {
	Name     string
	AdminIDs []string
	IsGroup  bool

	// BotIsAdmin is set when the bot itself holds admin rights
	BotIsAdmin bool
}
