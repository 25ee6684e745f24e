package chat

import "context"

// Transport is the chat platform connection the core depends on
type Transport interface {
	// SendMessage delivers content and returns the new message ID
	SendMessage(ctx context.Context, conversationID, content string) (string, error)
	// RetractMessage unsends a message previously sent by the bot
	RetractMessage(ctx context.Context, conversationID, messageID string) error
	// MarkRead is best-effort
	MarkRead(ctx context.Context, conversationID string) error
	// CurrentIdentity returns the bot's own user ID
	CurrentIdentity() string
	// GroupInfo fetches the name and administrators of a conversation
	GroupInfo(ctx context.Context, conversationID string) (GroupInfo, error)
	// RemoveMember removes a user from a group without banning them
	RemoveMember(ctx context.Context, conversationID, userID string) error
	// Listen streams inbound events until ctx is cancelled
	Listen(ctx context.Context) (<-chan Event, error)
}
