package menu_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"convox-bot/internal/chat"
	"convox-bot/internal/chat/chattest"
	"convox-bot/internal/command"
	"convox-bot/internal/ephemeral"
	"convox-bot/internal/menu"
	"convox-bot/internal/permissions"
)

type mutableRoles struct {
	mu    sync.Mutex
	roles map[string]permissions.Role
}

func (r *mutableRoles) RoleOf(userID, _ string) permissions.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roles[userID]
}

func (r *mutableRoles) set(userID string, role permissions.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[userID] = role
}

type fixture struct {
	transport *chattest.Transport
	roles     *mutableRoles
	nav       *menu.Navigator
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transport := chattest.New("bot")
	sender := chat.NewSender(transport, 0, 0, nil)
	registry := command.NewRegistry("!")
	noop := func(context.Context, *chat.Event, []string) error { return nil }

	registry.Register("alpha", noop, command.Options{Category: "general", Description: "first"})
	registry.Register("bravo", noop, command.Options{Category: "general", Description: "second"})
	registry.Register("charlie", noop, command.Options{Category: "general", Description: "moderated", MinRole: permissions.RoleModerator})
	registry.Register("delta", noop, command.Options{Category: "general", Description: "fourth"})
	registry.Register("sweep", noop, command.Options{Category: "admin", Description: "admin tool", AdminOnly: true})

	roles := &mutableRoles{roles: map[string]permissions.Role{}}
	scheduler := ephemeral.NewScheduler(transport, time.Hour, logger)
	categories := []menu.Category{
		{Key: "1", Name: "General", Tag: "general"},
		{Key: "2", Name: "Admin", Tag: "admin"},
	}
	nav := menu.NewNavigator(registry, roles, sender, scheduler, categories,
		menu.BotInfo{Name: "ConvoX", Version: "1.0.0", Prefix: "!"}, logger)
	return &fixture{transport: transport, roles: roles, nav: nav}
}

func event(user string) *chat.Event {
	return &chat.Event{ConversationID: "c1", SenderID: user}
}

func TestNumericReplyUsesFrozenList(t *testing.T) {
	f := newFixture()
	f.roles.set("u1", permissions.RoleModerator)

	f.nav.ShowCategory(context.Background(), event("u1"), "1")
	if !strings.Contains(f.transport.LastText(), "3 -> !charlie") {
		t.Fatalf("category view = %q", f.transport.LastText())
	}

	f.roles.set("u1", permissions.RoleUser)
	f.nav.HandleNumericSelection(context.Background(), event("u1"), "3")
	if got := f.transport.LastText(); !strings.HasPrefix(got, "🧩 Command details: charlie") {
		t.Fatalf("detail view = %q", got)
	}
}

func TestMainMenuCountsAreRoleAware(t *testing.T) {
	f := newFixture()

	f.nav.ShowMainMenu(context.Background(), event("u1"))
	text := f.transport.LastText()
	if !strings.Contains(text, "1. General -> 3 commands") || !strings.Contains(text, "2. Admin -> 0 commands") {
		t.Fatalf("user menu = %q", text)
	}

	f.roles.set("boss", permissions.RoleAdmin)
	f.nav.ShowMainMenu(context.Background(), event("boss"))
	text = f.transport.LastText()
	if !strings.Contains(text, "1. General -> 4 commands") || !strings.Contains(text, "2. Admin -> 1 commands") {
		t.Fatalf("admin menu = %q", text)
	}
}

func TestMainMenuClearsContext(t *testing.T) {
	f := newFixture()

	f.nav.ShowCategory(context.Background(), event("u1"), "1")
	f.nav.ShowMainMenu(context.Background(), event("u1"))

	// Without a category context "1" is a category key again.
	f.nav.HandleNumericSelection(context.Background(), event("u1"), "1")
	if got := f.transport.LastText(); !strings.Contains(got, "📂 General") {
		t.Fatalf("expected category view, got %q", got)
	}
}

func TestNumericFallbacks(t *testing.T) {
	f := newFixture()

	f.nav.HandleNumericSelection(context.Background(), event("u1"), "9")
	if got := f.transport.LastText(); got != "❌ Selection \"9\" is invalid." {
		t.Fatalf("invalid reply = %q", got)
	}

	f.transport.Reset()
	f.nav.HandleNumericSelection(context.Background(), event("u1"), "0")
	if len(f.transport.Sent()) != 0 {
		t.Fatal("zero should be ignored")
	}

	f.nav.ShowCategory(context.Background(), event("u1"), "2")
	if got := f.transport.LastText(); !strings.HasPrefix(got, "🔒") {
		t.Fatalf("hidden category reply = %q", got)
	}
}

func TestViewsSupersedeEachOther(t *testing.T) {
	f := newFixture()

	f.nav.ShowMainMenu(context.Background(), event("u1"))
	first := f.transport.Sent()[0].MessageID

	f.nav.ShowCategory(context.Background(), event("u1"), "1")
	if got := f.transport.Retracted(); len(got) != 1 || got[0] != first {
		t.Fatalf("retracted = %v, want [%s]", got, first)
	}

	f.nav.HandleNumericSelection(context.Background(), event("u1"), "2")
	if got := f.transport.Retracted(); len(got) != 2 {
		t.Fatalf("retracted after detail = %v", got)
	}
}

func TestMenuKeywordsAndSearch(t *testing.T) {
	f := newFixture()

	for _, name := range []string{"menu", "Commands", "LIST", "search"} {
		if !f.nav.IsMenuCommand(name) {
			t.Errorf("%s should be a menu command", name)
		}
	}
	if f.nav.IsMenuCommand("help") {
		t.Error("help is not a menu command")
	}

	f.nav.HandleMenuCommand(context.Background(), event("u1"), "list", nil)
	if got := f.transport.LastText(); !strings.Contains(got, "3. delta") || strings.Contains(got, "charlie") {
		t.Fatalf("list view = %q", got)
	}

	results := f.nav.Search("moder")
	if len(results) != 1 || results[0].Command.Name != "charlie" {
		t.Fatalf("Search = %+v", results)
	}
	if f.nav.TotalCommands() != 5 {
		t.Fatalf("TotalCommands = %d", f.nav.TotalCommands())
	}
}

func TestSearchViewHidesCommandsAboveRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.nav.HandleMenuCommand(ctx, event("u1"), "search", []string{"moder"})
	if got := f.transport.LastText(); got != "🔍 No commands match \"moder\"." {
		t.Fatalf("user search = %q", got)
	}

	f.roles.set("u1", permissions.RoleModerator)
	f.nav.HandleMenuCommand(ctx, event("u1"), "search", []string{"moder"})
	got := f.transport.LastText()
	if !strings.Contains(got, "1 of 5 commands") || !strings.Contains(got, "• !charlie (General) - moderated") {
		t.Fatalf("moderator search = %q", got)
	}

	f.nav.HandleMenuCommand(ctx, event("u1"), "search", nil)
	if got := f.transport.LastText(); got != "❌ Usage: !search <keyword>" {
		t.Fatalf("empty search = %q", got)
	}
}
