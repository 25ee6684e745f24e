package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"convox-bot/internal/chat"
)

const botID int64 = 9999999999

func TestToEventMessage(t *testing.T) {
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 42,
		From:      &tgbotapi.User{ID: 1111111111},
		Chat:      &tgbotapi.Chat{ID: -1001234567890, Type: "supergroup"},
		Text:      "!mod add",
		Date:      1700000000,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: 4},
			{Type: "text_mention", Offset: 9, Length: 4, User: &tgbotapi.User{ID: 2222222222}},
		},
		ReplyToMessage: &tgbotapi.Message{
			MessageID: 7,
			From:      &tgbotapi.User{ID: botID},
			Text:      "🆔 Group ID: -1001234567890",
		},
	}}

	ev, ok := toEvent(update, botID)
	if !ok {
		t.Fatal("message should convert")
	}
	if ev.Type != chat.EventReply || ev.ConversationID != "-1001234567890" || !ev.IsGroup {
		t.Fatalf("event = %+v", ev)
	}
	if ev.SenderID != "1111111111" || ev.MessageID != "42" || ev.Body != "!mod add" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Replied == nil || ev.Replied.MessageID != "7" || ev.Replied.SenderID != "9999999999" {
		t.Fatalf("replied = %+v", ev.Replied)
	}
	if len(ev.Mentions) != 1 || ev.Mentions[0] != "2222222222" {
		t.Fatalf("mentions = %v", ev.Mentions)
	}
	if ev.ReceivedAt.Unix() != 1700000000 {
		t.Fatalf("received at = %v", ev.ReceivedAt)
	}
}

func TestToEventBotAdded(t *testing.T) {
	group := tgbotapi.Chat{ID: -1001234567890, Type: "group", Title: "Lobby"}
	self := &tgbotapi.User{ID: botID, IsBot: true}

	tests := []struct {
		name   string
		update tgbotapi.Update
		want   bool
	}{
		{
			name: "my_chat_member join",
			update: tgbotapi.Update{MyChatMember: &tgbotapi.ChatMemberUpdated{
				Chat:          group,
				From:          tgbotapi.User{ID: 1111111111},
				OldChatMember: tgbotapi.ChatMember{User: self, Status: "left"},
				NewChatMember: tgbotapi.ChatMember{User: self, Status: "member"},
			}},
			want: true,
		},
		{
			name: "my_chat_member promotion",
			update: tgbotapi.Update{MyChatMember: &tgbotapi.ChatMemberUpdated{
				Chat:          group,
				From:          tgbotapi.User{ID: 1111111111},
				OldChatMember: tgbotapi.ChatMember{User: self, Status: "member"},
				NewChatMember: tgbotapi.ChatMember{User: self, Status: "administrator"},
			}},
			want: false,
		},
		{
			name: "my_chat_member removal",
			update: tgbotapi.Update{MyChatMember: &tgbotapi.ChatMemberUpdated{
				Chat:          group,
				From:          tgbotapi.User{ID: 1111111111},
				OldChatMember: tgbotapi.ChatMember{User: self, Status: "member"},
				NewChatMember: tgbotapi.ChatMember{User: self, Status: "kicked"},
			}},
			want: false,
		},
		{
			name: "service message",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				MessageID:      3,
				From:           &tgbotapi.User{ID: 1111111111},
				Chat:           &group,
				NewChatMembers: []tgbotapi.User{*self},
			}},
			want: true,
		},
		{
			name: "someone else joined",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				MessageID:      4,
				From:           &tgbotapi.User{ID: 1111111111},
				Chat:           &group,
				NewChatMembers: []tgbotapi.User{{ID: 2222222222}},
			}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := toEvent(tt.update, botID)
			got := ok && ev.Type == chat.EventBotAdded
			if got != tt.want {
				t.Fatalf("bot added = %v, want %v (event %+v)", got, tt.want, ev)
			}
			if got && (ev.ConversationID != "-1001234567890" || ev.SenderID != "1111111111") {
				t.Fatalf("event = %+v", ev)
			}
		})
	}
}

func TestAdminIDsCreatorFirst(t *testing.T) {
	members := []tgbotapi.ChatMember{
		{User: &tgbotapi.User{ID: 3}, Status: "administrator"},
		{User: &tgbotapi.User{ID: 4, IsBot: true}, Status: "administrator"},
		{User: &tgbotapi.User{ID: 1}, Status: "creator"},
	}
	got := adminIDs(members)
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Fatalf("adminIDs = %v", got)
	}
	if !hasMember(members, 4) {
		t.Error("bot admin should be found")
	}
	if hasMember(members, 9) {
		t.Error("unknown user should not be found")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}
