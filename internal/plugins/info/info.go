// Package info shows bot, group and host information and keeps a per-user
// activity counter fed by the message interceptor.
package info

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"convox-bot/internal/chat"
	"convox-bot/internal/command"
	"convox-bot/internal/permissions"
	"convox-bot/internal/plugin"
)

type activity struct {
	messages int
	lastSeen time.Time
}

// Plugin implements plugin.Plugin and plugin.Interceptor
type Plugin struct {
	host  *plugin.Host
	now   func() time.Time
	probe hostProbe

	mu       sync.Mutex
	activity map[string]*activity
}

func New() plugin.Plugin {
	return &Plugin{
		now:      time.Now,
		probe:    gopsutilProbe{},
		activity: make(map[string]*activity),
	}
}

func (p *Plugin) Name() string { return "info" }

func (p *Plugin) Initialize(_ context.Context, host *plugin.Host) error {
	if host.Store == nil {
		return errors.New("info plugin requires a permission store")
	}
	p.host = host
	return nil
}

func (p *Plugin) Cleanup(context.Context) error { return nil }

func (p *Plugin) RegisterCommands(r *command.Registry) {
	pre := r.Prefix()
	r.Register("info", p.handleInfo, command.Options{
		Description: "Show bot, group or user information",
		Usage:       pre + "info [groupID|userID|@mention]",
		Example:     pre + "info",
		Category:    "info",
		Cooldown:    3,
		Aliases:     []string{"about", "botinfo"},
	})
	r.Register("sysinfo", p.handleSysInfo, command.Options{
		Description: "Show host resource usage",
		Category:    "info",
		MinRole:     permissions.RoleAdmin,
		Cooldown:    5,
		Aliases:     []string{"system", "status"},
	})
}

// InterceptMessage counts messages per sender. It never consumes the message.
func (p *Plugin) InterceptMessage(_ context.Context, ev *chat.Event) (bool, error) {
	if ev.SenderID == "" {
		return false, nil
	}
	p.mu.Lock()
	a, ok := p.activity[ev.SenderID]
	if !ok {
		a = &activity{}
		p.activity[ev.SenderID] = a
	}
	a.messages++
	a.lastSeen = p.now()
	p.mu.Unlock()
	return false, nil
}

func (p *Plugin) activityOf(userID string) (activity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.activity[userID]
	if !ok {
		return activity{}, false
	}
	return *a, true
}

func (p *Plugin) reply(ctx context.Context, ev *chat.Event, text string) {
	p.host.Sender.Reply(ctx, ev.ConversationID, text)
}

func (p *Plugin) handleInfo(ctx context.Context, ev *chat.Event, args []string) error {
	store := p.host.Store
	role := store.RoleOf(ev.SenderID, ev.GroupID())

	target := ""
	if len(ev.Mentions) > 0 {
		target = ev.Mentions[0]
	} else if len(args) > 0 {
		target = strings.TrimPrefix(args[0], "@")
	}

	if target != "" {
		if !role.Satisfies(permissions.RoleModerator) {
			p.reply(ctx, ev, "❌ Looking up other users and groups requires Moderator or higher.")
			return nil
		}
		if strings.HasPrefix(target, "-") {
			return p.groupInfo(ctx, ev, target)
		}
		p.reply(ctx, ev, p.userInfo(target, ev.GroupID()))
		return nil
	}

	switch {
	case role.Satisfies(permissions.RoleAdmin):
		p.reply(ctx, ev, p.botInfo())
	case role.Satisfies(permissions.RoleModerator):
		p.reply(ctx, ev, p.staffInfo())
	default:
		return p.memberInfo(ctx, ev, role)
	}
	return nil
}

func (p *Plugin) botInfo() string {
	info := p.host.Info
	store := p.host.Store

	var b strings.Builder
	fmt.Fprintf(&b, "🤖 %s v%s\n\n", info.Name, info.Version)
	fmt.Fprintf(&b, "⌨️ Prefix: %s\n", info.Prefix)
	if p.host.Registry != nil {
		fmt.Fprintf(&b, "📚 Commands: %d (%d aliases)\n", p.host.Registry.Count(), p.host.Registry.AliasCount())
	}
	if !info.StartedAt.IsZero() {
		fmt.Fprintf(&b, "⏱️ Uptime: %s\n", formatUptime(p.now().Sub(info.StartedAt)))
	}
	if info.Storage != "" {
		fmt.Fprintf(&b, "📁 Storage: %s\n", info.Storage)
	}
	fmt.Fprintf(&b, "👑 Owners: %s", joinOr(store.Owners(), "none"))
	return b.String()
}

func (p *Plugin) staffInfo() string {
	store := p.host.Store
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 %s\n\n", p.host.Info.Name)
	fmt.Fprintf(&b, "👑 Owners: %s\n", joinOr(store.Owners(), "none"))
	fmt.Fprintf(&b, "🔧 Admins: %s", joinOr(store.Admins(), "none"))
	return b.String()
}

func (p *Plugin) memberInfo(ctx context.Context, ev *chat.Event, role permissions.Role) error {
	var b strings.Builder
	if ev.IsGroup {
		gi, err := p.host.Transport.GroupInfo(ctx, ev.ConversationID)
		if err != nil {
			return fmt.Errorf("fetch group info: %w", err)
		}
		name := gi.Name
		if name == "" {
			name = "N/A"
		}
		fmt.Fprintf(&b, "🏠 Group: %s\n", name)
		fmt.Fprintf(&b, "👥 Group admins: %s\n", joinOr(gi.AdminIDs, "none"))
	}
	fmt.Fprintf(&b, "🎭 Your role: %s", role)
	p.reply(ctx, ev, b.String())
	return nil
}

func (p *Plugin) groupInfo(ctx context.Context, ev *chat.Event, groupID string) error {
	gi, err := p.host.Transport.GroupInfo(ctx, groupID)
	if err != nil {
		p.reply(ctx, ev, fmt.Sprintf("❌ Could not fetch group %s.", groupID))
		return nil
	}

	store := p.host.Store
	status := "not allowed"
	if store.IsGroupAllowed(groupID) {
		status = "allowed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏠 Group: %s\n", gi.Name)
	fmt.Fprintf(&b, "🆔 ID: %s\n", groupID)
	fmt.Fprintf(&b, "✅ Status: %s\n", status)
	fmt.Fprintf(&b, "👥 Admins: %s", joinOr(gi.AdminIDs, "none"))
	if mods := store.GroupModerators(groupID); len(mods) > 0 {
		fmt.Fprintf(&b, "\n👮 Moderators: %s", strings.Join(mods, ", "))
	}
	p.reply(ctx, ev, b.String())
	return nil
}

func (p *Plugin) userInfo(userID, groupID string) string {
	store := p.host.Store

	var b strings.Builder
	fmt.Fprintf(&b, "👤 User: %s\n", userID)
	fmt.Fprintf(&b, "🎭 Role: %s\n", store.RoleOf(userID, groupID))
	fmt.Fprintf(&b, "✅ Approved: %t", store.IsUserApproved(userID))
	if a, ok := p.activityOf(userID); ok {
		fmt.Fprintf(&b, "\n💬 Messages seen: %d\n", a.messages)
		fmt.Fprintf(&b, "🕒 Last seen: %s", a.lastSeen.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// TopActive returns up to n user IDs ordered by message count
func (p *Plugin) TopActive(n int) []string {
	p.mu.Lock()
	ids := make([]string, 0, len(p.activity))
	counts := make(map[string]int, len(p.activity))
	for id, a := range p.activity {
		ids = append(ids, id)
		counts[id] = a.messages
	}
	p.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
