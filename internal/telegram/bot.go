// Package telegram adapts the Telegram Bot API to chat.Transport.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"convox-bot/internal/chat"
)

// Telegram rejects longer text messages
const maxMessageLength = 4096

// Config holds the Telegram connection settings
type Config struct {
	BotToken       string
	PollingTimeout int
}

// Transport implements chat.Transport over the Bot API
type Transport struct {
	api    *tgbotapi.BotAPI
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	joined map[int64]time.Time
}

// NewTransport connects to the Bot API
func NewTransport(cfg Config, logger *slog.Logger) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Transport{
		api:    api,
		cfg:    cfg,
		logger: logger,
		joined: make(map[int64]time.Time),
	}, nil
}

func (t *Transport) SendMessage(_ context.Context, conversationID, content string) (string, error) {
	chatID, err := parseID(conversationID)
	if err != nil {
		return "", err
	}

	sent, err := t.api.Send(tgbotapi.NewMessage(chatID, truncate(content, maxMessageLength)))
	if err != nil {
		return "", fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return formatMessageID(sent.MessageID), nil
}

func (t *Transport) RetractMessage(_ context.Context, conversationID, messageID string) error {
	chatID, err := parseID(conversationID)
	if err != nil {
		return err
	}
	msgID, err := parseMessageID(messageID)
	if err != nil {
		return err
	}

	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		return fmt.Errorf("delete message %d in %d: %w", msgID, chatID, err)
	}
	return nil
}

// MarkRead is a no-op: bots have no read receipts on Telegram.
func (t *Transport) MarkRead(context.Context, string) error {
	return nil
}

func (t *Transport) CurrentIdentity() string {
	return formatID(t.api.Self.ID)
}

// GroupInfo returns the chat title and administrators, creator first
func (t *Transport) GroupInfo(_ context.Context, conversationID string) (chat.GroupInfo, error) {
	chatID, err := parseID(conversationID)
	if err != nil {
		return chat.GroupInfo{}, err
	}

	cfg := tgbotapi.ChatConfig{ChatID: chatID}
	c, err := t.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: cfg})
	if err != nil {
		return chat.GroupInfo{}, fmt.Errorf("get chat %d: %w", chatID, err)
	}

	info := chat.GroupInfo{
		Name:    c.Title,
		IsGroup: c.IsGroup() || c.IsSuperGroup(),
	}
	if !info.IsGroup {
		return info, nil
	}

	members, err := t.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{ChatConfig: cfg})
	if err != nil {
		return info, fmt.Errorf("get administrators of %d: %w", chatID, err)
	}
	info.AdminIDs = adminIDs(members)
	info.BotIsAdmin = hasMember(members, t.api.Self.ID)
	return info, nil
}

// RemoveMember bans then immediately unbans, so the user may rejoin later
func (t *Transport) RemoveMember(_ context.Context, conversationID, userID string) error {
	chatID, err := parseID(conversationID)
	if err != nil {
		return err
	}
	uid, err := parseID(userID)
	if err != nil {
		return err
	}

	member := tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: uid}
	if _, err := t.api.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return fmt.Errorf("ban %d in %d: %w", uid, chatID, err)
	}
	if _, err := t.api.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member, OnlyIfBanned: true}); err != nil {
		t.logger.Warn("failed to lift ban after kick",
			"chat_id", chatID,
			"user_id", uid,
			"error", err,
		)
	}
	return nil
}

// Listen long-polls for updates until ctx is cancelled
func (t *Transport) Listen(ctx context.Context) (<-chan chat.Event, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.cfg.PollingTimeout
	u.AllowedUpdates = []string{"message", "my_chat_member"}

	updates := t.api.GetUpdatesChan(u)
	out := make(chan chat.Event)

	t.logger.Info("listening for updates", "username", t.api.Self.UserName)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				t.api.StopReceivingUpdates()
				return

			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := toEvent(update, t.api.Self.ID)
				if !ok {
					continue
				}
				if ev.Type == chat.EventBotAdded && !t.firstJoin(update) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					t.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()

	return out, nil
}

// firstJoin drops the duplicate join notice Telegram sends as both a
// service message and a my_chat_member update.
func (t *Transport) firstJoin(update tgbotapi.Update) bool {
	var chatID int64
	switch {
	case update.MyChatMember != nil:
		chatID = update.MyChatMember.Chat.ID
	case update.Message != nil:
		chatID = update.Message.Chat.ID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for id, at := range t.joined {
		if now.Sub(at) > time.Minute {
			delete(t.joined, id)
		}
	}
	if _, seen := t.joined[chatID]; seen {
		return false
	}
	t.joined[chatID] = now
	return true
}

func adminIDs(members []tgbotapi.ChatMember) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.User == nil || m.User.IsBot {
			continue
		}
		if m.IsCreator() {
			ids = append([]string{formatID(m.User.ID)}, ids...)
			continue
		}
		ids = append(ids, formatID(m.User.ID))
	}
	return ids
}

func hasMember(members []tgbotapi.ChatMember, userID int64) bool {
	for _, m := range members {
		if m.User != nil && m.User.ID == userID {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
