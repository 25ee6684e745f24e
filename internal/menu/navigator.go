package menu

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"convox-bot/internal/chat"
	"convox-bot/internal/command"
	"convox-bot/internal/ephemeral"
	"convox-bot/internal/permissions"
)

const divider = "________________________"

// Category is one numbered entry of the main menu. Commands whose category
// tag equals Tag are listed under it.
type Category struct {
	Key  string
	Name string
	Tag  string
}

// BotInfo is shown in menu headers
type BotInfo struct {
	Name    string
	Version string
	Prefix  string
}

// SearchResult is one match from Search
type SearchResult struct {
	CategoryKey  string
	CategoryName string
	Command      command.Descriptor
}

type viewContext struct {
	categoryKey string
	commands    []command.Descriptor
}

// Navigator renders command menus and resolves numeric replies
type Navigator struct {
	registry   *command.Registry
	roles      command.RoleResolver
	sender     *chat.Sender
	ephemeral  *ephemeral.Scheduler
	categories []Category
	info       BotInfo
	logger     *slog.Logger

	mu       sync.Mutex
	contexts map[string]*viewContext
}

// NewNavigator creates a navigator over the given categories, in display order
func NewNavigator(
	registry *command.Registry,
	roles command.RoleResolver,
	sender *chat.Sender,
	scheduler *ephemeral.Scheduler,
	categories []Category,
	info BotInfo,
	logger *slog.Logger,
) *Navigator {
	return &Navigator{
		registry:   registry,
		roles:      roles,
		sender:     sender,
		ephemeral:  scheduler,
		categories: categories,
		info:       info,
		logger:     logger,
		contexts:   make(map[string]*viewContext),
	}
}

// IsMenuCommand reports whether name is handled by the navigator
func (n *Navigator) IsMenuCommand(name string) bool {
	switch strings.ToLower(name) {
	case "menu", "commands", "list", "search":
		return true
	}
	return false
}

// HandleMenuCommand renders the view for a menu keyword
func (n *Navigator) HandleMenuCommand(ctx context.Context, ev *chat.Event, name string, args []string) {
	switch strings.ToLower(name) {
	case "commands":
		n.ShowCommands(ctx, ev)
	case "list":
		n.ShowCommandList(ctx, ev)
	case "search":
		n.ShowSearch(ctx, ev, strings.Join(args, " "))
	default:
		n.ShowMainMenu(ctx, ev)
	}
}

// Categories returns the configured categories
func (n *Navigator) Categories() []Category {
	return append([]Category(nil), n.categories...)
}

func (n *Navigator) category(key string) (Category, bool) {
	for _, c := range n.categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

func (n *Navigator) visible(tag string, role permissions.Role) []command.Descriptor {
	var out []command.Descriptor
	for _, d := range n.registry.ByCategory(tag) {
		if d.Enabled && role.Satisfies(d.RequiredRole()) {
			out = append(out, d)
		}
	}
	return out
}

func (n *Navigator) roleFor(ev *chat.Event) permissions.Role {
	return n.roles.RoleOf(ev.SenderID, ev.GroupID())
}

// sendView replaces the conversation's transient views with text
func (n *Navigator) sendView(ctx context.Context, conversationID, text string) {
	n.ephemeral.ClearAll(ctx, conversationID)
	if id, ok := n.sender.Send(ctx, conversationID, text); ok {
		n.ephemeral.Schedule(conversationID, id, 0)
	}
}

// ShowMainMenu lists categories with the number of commands the caller can see
func (n *Navigator) ShowMainMenu(ctx context.Context, ev *chat.Event) {
	role := n.roleFor(ev)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", divider)
	fmt.Fprintf(&b, "| 🤖 Menu %s (v%s)\n", n.info.Name, n.info.Version)
	fmt.Fprintf(&b, "| %s\n", divider)
	for _, c := range n.categories {
		fmt.Fprintf(&b, "| %s. %s -> %d commands\n", c.Key, c.Name, len(n.visible(c.Tag, role)))
	}
	fmt.Fprintf(&b, "| %s\n", divider)
	fmt.Fprintf(&b, "💡 Reply with a number (1-%d) to open a category\n", len(n.categories))
	b.WriteString(divider)

	n.mu.Lock()
	delete(n.contexts, ev.ConversationID)
	n.mu.Unlock()

	n.sendView(ctx, ev.ConversationID, b.String())
}

// ShowCategory lists the caller's visible commands in a category and
// remembers that list for numeric replies.
func (n *Navigator) ShowCategory(ctx context.Context, ev *chat.Event, key string) {
	c, ok := n.category(key)
	if !ok {
		n.sender.Reply(ctx, ev.ConversationID, fmt.Sprintf(
			"❌ Category \"%s\" does not exist!\nType \"%smenu\" to see the categories.", key, n.info.Prefix,
		))
		return
	}

	commands := n.visible(c.Tag, n.roleFor(ev))
	if len(commands) == 0 {
		n.sender.Reply(ctx, ev.ConversationID, "🔒 You do not have permission to view the commands in this category.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", divider)
	fmt.Fprintf(&b, "📂 %s (%s v%s)\n", c.Name, n.info.Name, n.info.Version)
	fmt.Fprintf(&b, "%s\n\n", divider)
	b.WriteString("📋 Commands:\n\n")
	for i, d := range commands {
		fmt.Fprintf(&b, "%d -> %s | %s\n", i+1, d.Usage, d.Description)
	}
	b.WriteString("\n💡 Reply with a number to see command details")
	fmt.Fprintf(&b, "\n💡 Type \"%smenu\" to go back to the main menu", n.info.Prefix)

	n.sendView(ctx, ev.ConversationID, b.String())

	n.mu.Lock()
	n.contexts[ev.ConversationID] = &viewContext{categoryKey: c.Key, commands: commands}
	n.mu.Unlock()
}

// HandleNumericSelection resolves a bare number against the last category
// shown in the conversation, then as a category key. Non-positive numbers
// are ignored.
func (n *Navigator) HandleNumericSelection(ctx context.Context, ev *chat.Event, selection string) {
	number, err := strconv.Atoi(selection)
	if err != nil || number <= 0 {
		return
	}

	n.mu.Lock()
	view := n.contexts[ev.ConversationID]
	n.mu.Unlock()

	if view != nil && number <= len(view.commands) {
		n.ShowDetail(ctx, ev.ConversationID, view.commands[number-1])
		return
	}

	if _, ok := n.category(selection); ok {
		n.ShowCategory(ctx, ev, selection)
		return
	}

	n.sender.Reply(ctx, ev.ConversationID, fmt.Sprintf("❌ Selection \"%s\" is invalid.", selection))
}

// ShowDetail renders one command's description and usage
func (n *Navigator) ShowDetail(ctx context.Context, conversationID string, d command.Descriptor) {
	var b strings.Builder
	fmt.Fprintf(&b, "🧩 Command details: %s\n", d.Name)
	fmt.Fprintf(&b, "Name: %s\n", d.Name)
	fmt.Fprintf(&b, "Description: %s\n", d.Description)
	fmt.Fprintf(&b, "Usage: %s\n", d.Usage)
	fmt.Fprintf(&b, "Example: %s", d.Example)
	if len(d.Aliases) > 0 {
		fmt.Fprintf(&b, "\nAliases: %s", strings.Join(d.Aliases, ", "))
	}
	if d.Cooldown > 0 {
		fmt.Fprintf(&b, "\nCooldown: %ds", d.Cooldown)
	}
	if role := d.RequiredRole(); role > permissions.RoleUser {
		fmt.Fprintf(&b, "\nRequires: %s", role)
	}

	n.sendView(ctx, conversationID, b.String())
}

// ShowCommands lists every visible command grouped by category
func (n *Navigator) ShowCommands(ctx context.Context, ev *chat.Event) {
	role := n.roleFor(ev)

	var b strings.Builder
	b.WriteString("📋 ALL COMMANDS\n\n")
	for _, c := range n.categories {
		fmt.Fprintf(&b, "📂 %s\n", c.Name)
		for _, d := range n.visible(c.Tag, role) {
			fmt.Fprintf(&b, "• %s - %s\n", d.Name, d.Description)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "💡 Type \"%smenu\" to browse each category", n.info.Prefix)

	n.sender.Reply(ctx, ev.ConversationID, b.String())
}

// ShowCommandList prints a flat numbered list of visible commands
func (n *Navigator) ShowCommandList(ctx context.Context, ev *chat.Event) {
	role := n.roleFor(ev)

	var b strings.Builder
	b.WriteString("📝 COMMAND LIST\n\n")
	index := 1
	for _, c := range n.categories {
		fmt.Fprintf(&b, "%s:\n", c.Name)
		for _, d := range n.visible(c.Tag, role) {
			fmt.Fprintf(&b, "%d. %s\n", index, d.Name)
			index++
		}
		b.WriteString("\n")
	}

	n.sender.Reply(ctx, ev.ConversationID, strings.TrimRight(b.String(), "\n"))
}

// ShowSearch lists the visible commands matching query
func (n *Navigator) ShowSearch(ctx context.Context, ev *chat.Event, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		n.sender.Reply(ctx, ev.ConversationID, fmt.Sprintf("❌ Usage: %ssearch <keyword>", n.info.Prefix))
		return
	}

	role := n.roleFor(ev)
	var matches []SearchResult
	for _, r := range n.Search(query) {
		if r.Command.Enabled && role.Satisfies(r.Command.RequiredRole()) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		n.sender.Reply(ctx, ev.ConversationID, fmt.Sprintf("🔍 No commands match \"%s\".", query))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Search \"%s\": %d of %d commands\n\n", query, len(matches), n.TotalCommands())
	for _, r := range matches {
		fmt.Fprintf(&b, "• %s%s (%s) - %s\n", n.info.Prefix, r.Command.Name, r.CategoryName, r.Command.Description)
	}
	fmt.Fprintf(&b, "\n💡 Type \"%smenu\" to browse by category", n.info.Prefix)

	n.sendView(ctx, ev.ConversationID, b.String())
}

// Search matches query against command names and descriptions
func (n *Navigator) Search(query string) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var results []SearchResult
	for _, c := range n.categories {
		for _, d := range n.registry.ByCategory(c.Tag) {
			if strings.Contains(d.Name, query) || strings.Contains(strings.ToLower(d.Description), query) {
				results = append(results, SearchResult{CategoryKey: c.Key, CategoryName: c.Name, Command: d})
			}
		}
	}
	return results
}

// TotalCommands counts commands across all categories
func (n *Navigator) TotalCommands() int {
	total := 0
	for _, c := range n.categories {
		total += len(n.registry.ByCategory(c.Tag))
	}
	return total
}
