package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"convox-bot/internal/chat"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", s, err)
	}
	return id, nil
}

func formatMessageID(id int) string {
	return strconv.Itoa(id)
}

func parseMessageID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", s, err)
	}
	return id, nil
}

// toEvent converts an update into a chat event. ok is false for updates
// the core does not handle.
func toEvent(update tgbotapi.Update, selfID int64) (chat.Event, bool) {
	if m := update.MyChatMember; m != nil {
		if !isGroupChat(&m.Chat) || m.NewChatMember.User == nil || m.NewChatMember.User.ID != selfID {
			return chat.Event{}, false
		}
		wasOut := m.OldChatMember.HasLeft() || m.OldChatMember.WasKicked()
		isIn := !m.NewChatMember.HasLeft() && !m.NewChatMember.WasKicked()
		if !wasOut || !isIn {
			return chat.Event{}, false
		}
		return chat.Event{
			Type:           chat.EventBotAdded,
			ConversationID: formatID(m.Chat.ID),
			SenderID:       formatID(m.From.ID),
			IsGroup:        true,
		}, true
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return chat.Event{}, false
	}

	ev := chat.Event{
		Type:           chat.EventMessage,
		ConversationID: formatID(msg.Chat.ID),
		MessageID:      formatMessageID(msg.MessageID),
		IsGroup:        isGroupChat(msg.Chat),
		ReceivedAt:     msg.Time(),
	}
	if msg.From != nil {
		ev.SenderID = formatID(msg.From.ID)
	}

	for _, u := range msg.NewChatMembers {
		if u.ID == selfID && ev.IsGroup {
			ev.Type = chat.EventBotAdded
			return ev, true
		}
	}

	ev.Body = msg.Text
	if ev.Body == "" {
		ev.Body = msg.Caption
	}
	if ev.Body == "" {
		return chat.Event{}, false
	}

	if r := msg.ReplyToMessage; r != nil {
		ev.Type = chat.EventReply
		ev.Replied = &chat.RepliedMessage{
			MessageID: formatMessageID(r.MessageID),
			Body:      r.Text,
		}
		if r.From != nil {
			ev.Replied.SenderID = formatID(r.From.ID)
		}
	}

	for _, e := range msg.Entities {
		if e.Type == "text_mention" && e.User != nil {
			ev.Mentions = append(ev.Mentions, formatID(e.User.ID))
		}
	}

	return ev, true
}

func isGroupChat(c *tgbotapi.Chat) bool {
	return c.IsGroup() || c.IsSuperGroup()
}
