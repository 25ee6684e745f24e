package bot_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"convox-bot/internal/approval"
	"convox-bot/internal/bot"
	"convox-bot/internal/chat"
	"convox-bot/internal/chat/chattest"
	"convox-bot/internal/command"
	"convox-bot/internal/ephemeral"
	"convox-bot/internal/limiter"
	"convox-bot/internal/menu"
	"convox-bot/internal/permissions"
	"convox-bot/internal/plugin"
	"convox-bot/internal/plugins"
)

const (
	owner   = "1111111111"
	adminID = "5555555555"
	member  = "2222222222"
	selfID  = "9999999999"
	groupID = "-1001234567890"
)

// swallow consumes any message containing "secret"
type swallow struct{}

func (swallow) Name() string { return "swallow" }
func (swallow) Initialize(context.Context, *plugin.Host) error { return nil }
func (swallow) RegisterCommands(*command.Registry) {}
func (swallow) Cleanup(context.Context) error { return nil }
func (swallow) InterceptMessage(_ context.Context, ev *chat.Event) (bool, error) {
	return strings.Contains(ev.Body, "secret"), nil
}

type harness struct {
	transport *chattest.Transport
	store     *permissions.Store
	bot       *bot.Bot
}

func newHarness(t *testing.T, opts bot.Options) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := permissions.NewStore(
		permissions.NewFileBackend(filepath.Join(t.TempDir(), "permissions.json")),
		[]string{owner}, []string{adminID}, logger)
	if err != nil {
		t.Fatal(err)
	}

	transport := chattest.New(selfID)
	transport.Groups[groupID] = chat.GroupInfo{Name: "Lobby", AdminIDs: []string{"7777777777"}, IsGroup: true}
	sender := chat.NewSender(transport, 0, 0, nil)
	registry := command.NewRegistry("!")
	dispatcher := command.NewDispatcher(registry, store, limiter.NewCooldowns(), sender, logger)
	scheduler := ephemeral.NewScheduler(transport, time.Hour, logger)
	t.Cleanup(scheduler.Stop)
	approvals := approval.NewWorkflow(store, sender, "!", logger)

	navigator := menu.NewNavigator(registry, store, sender, scheduler, []menu.Category{
		{Key: "1", Name: "Admin", Tag: "admin"},
		{Key: "2", Name: "Info", Tag: "info"},
		{Key: "3", Name: "Utility", Tag: "utility"},
	}, menu.BotInfo{Name: "ConvoX", Version: "1.0.0", Prefix: "!"}, logger)

	host := &plugin.Host{
		Registry:   registry,
		Dispatcher: dispatcher,
		Store:      store,
		Approvals:  approvals,
		Sender:     sender,
		Transport:  transport,
		Logger:     logger,
		Info:       plugin.BotInfo{Name: "ConvoX", Version: "1.0.0", Prefix: "!"},
	}
	manager := plugin.NewManager(host, logger)
	entries := append(plugins.Builtin(), plugin.Entry{Name: "swallow", Factory: func() plugin.Plugin { return swallow{} }})
	if err := manager.Load(context.Background(), entries, nil); err != nil {
		t.Fatal(err)
	}

	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	b := bot.New(bot.Deps{
		Transport:  transport,
		Store:      store,
		Dispatcher: dispatcher,
		Navigator:  navigator,
		Ephemeral:  scheduler,
		Approvals:  approvals,
		Plugins:    manager,
	}, opts, logger)

	return &harness{transport: transport, store: store, bot: b}
}

func (h *harness) send(ev chat.Event) string {
	h.bot.HandleEvent(context.Background(), &ev)
	return h.transport.LastText()
}

func groupMsg(user, body string) chat.Event {
	return chat.Event{Type: chat.EventMessage, ConversationID: groupID, SenderID: user, Body: body, IsGroup: true}
}

func directMsg(user, body string) chat.Event {
	return chat.Event{Type: chat.EventMessage, ConversationID: user, SenderID: user, Body: body}
}

func TestUnapprovedGroupIsSilent(t *testing.T) {
	h := newHarness(t, bot.Options{})

	h.send(groupMsg(member, "!ping"))
	h.send(directMsg(member, "!menu"))
	if n := len(h.transport.Sent()); n != 0 {
		t.Fatalf("expected no replies, got %d", n)
	}

	if got := h.send(groupMsg(owner, "!whoami")); !strings.Contains(got, "Role: Owner") {
		t.Fatalf("owner reply = %q", got)
	}

	if err := h.store.AllowGroup(owner, groupID); err != nil {
		t.Fatal(err)
	}
	h.transport.Reset()
	h.send(groupMsg(member, "!PING"))
	if got := h.transport.Sent(); len(got) != 2 || !strings.Contains(got[1].Text, "Latency") {
		t.Fatalf("ping after approval = %+v", got)
	}
}

func TestMenuNavigationAndCleanup(t *testing.T) {
	h := newHarness(t, bot.Options{})
	if err := h.store.AllowUser(owner, member); err != nil {
		t.Fatal(err)
	}

	if got := h.send(directMsg(member, "!menu")); !strings.Contains(got, "| 3. Utility -> 1 commands") {
		t.Fatalf("main menu = %q", got)
	}
	if got := h.send(directMsg(member, "3")); !strings.Contains(got, "1 -> !ping | Check bot latency") {
		t.Fatalf("category = %q", got)
	}
	if got := h.send(directMsg(member, "1")); !strings.HasPrefix(got, "🧩 Command details: ping") {
		t.Fatalf("detail = %q", got)
	}
	if got := h.send(directMsg(member, "9")); got != "❌ Selection \"9\" is invalid." {
		t.Fatalf("invalid selection = %q", got)
	}

	h.send(directMsg(member, "!ping"))
	retracted := h.transport.Retracted()
	if len(retracted) != 3 || retracted[2] != "m3" {
		t.Fatalf("retracted = %v", retracted)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, bot.Options{})
	got := h.send(directMsg(owner, "!nope now"))
	if !strings.Contains(got, "Command \"nope\" does not exist") {
		t.Fatalf("reply = %q", got)
	}
	if h.send(directMsg(owner, "!")) != got {
		t.Fatal("a bare prefix should be ignored")
	}
}

func TestBotAddedAndBareApprove(t *testing.T) {
	h := newHarness(t, bot.Options{})

	h.send(chat.Event{Type: chat.EventBotAdded, ConversationID: groupID, SenderID: member, IsGroup: true})
	if _, ok := h.store.PendingGroup(groupID); !ok {
		t.Fatal("group should be pending")
	}

	var notice chattest.Sent
	for _, s := range h.transport.Sent() {
		if s.ConversationID == adminID {
			notice = s
		}
	}
	if notice.MessageID == "" {
		t.Fatal("admin was not notified")
	}

	reply := directMsg(adminID, "approve")
	reply.Replied = &chat.RepliedMessage{MessageID: notice.MessageID, SenderID: selfID, Body: notice.Text}
	if got := h.send(reply); !strings.Contains(got, "may now use the bot") {
		t.Fatalf("approve reply = %q", got)
	}
	if !h.store.IsGroupAllowed(groupID) {
		t.Fatal("group should be allowed")
	}
	if h.store.RoleOf("7777777777", groupID) != permissions.RoleModerator {
		t.Fatal("the group owner should be promoted")
	}
}

func TestSelfAndInterceptedMessages(t *testing.T) {
	h := newHarness(t, bot.Options{AutoMarkRead: true})

	h.send(directMsg(selfID, "!ping"))
	h.send(directMsg(owner, "!ping secret"))
	if n := len(h.transport.Sent()); n != 0 {
		t.Fatalf("expected no replies, got %d", n)
	}
	if read := h.transport.MarkedRead(); len(read) != 1 || read[0] != owner {
		t.Fatalf("marked read = %v", read)
	}
}

func TestRunProcessesUntilCancelled(t *testing.T) {
	h := newHarness(t, bot.Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	h.transport.Push(directMsg(owner, "!whoami"))

	deadline := time.Now().Add(2 * time.Second)
	for h.transport.LastText() == "" {
		if time.Now().After(deadline) {
			t.Fatal("event was not processed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
