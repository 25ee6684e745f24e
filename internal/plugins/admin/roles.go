package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"convox-bot/internal/chat"
	"convox-bot/internal/permissions"
)

func (p *Plugin) handleAdmin(ctx context.Context, ev *chat.Event, args []string) error {
	if len(args) == 0 {
		p.reply(ctx, ev, p.adminHelp())
		return nil
	}

	var target string
	if len(args) > 1 {
		target = args[1]
	}

	switch strings.ToLower(args[0]) {
	case "grant":
		return p.grantModerator(ctx, ev, target)
	case "revoke":
		return p.revokeModerator(ctx, ev, target)
	case "list":
		return p.listPermissions(ctx, ev)
	case "whoami":
		return p.handleWhoAmI(ctx, ev, nil)
	default:
		p.reply(ctx, ev, fmt.Sprintf("❌ Unknown action \"%s\"!\n%s", args[0], p.adminHelp()))
		return nil
	}
}

func (p *Plugin) grantModerator(ctx context.Context, ev *chat.Event, target string) error {
	target = targetUser(ev, target)
	if target == "" {
		p.reply(ctx, ev, "❌ Please provide the user ID to promote!")
		return nil
	}
	if !validUserID(target) {
		p.reply(ctx, ev, "❌ Invalid user ID!")
		return nil
	}

	err := p.host.Store.GrantModerator(ev.SenderID, target)
	p.outcome(ctx, ev, err,
		fmt.Sprintf("✅ Granted Moderator to %s", target),
		"❌ Could not grant moderator!")
	return nil
}

func (p *Plugin) revokeModerator(ctx context.Context, ev *chat.Event, target string) error {
	target = targetUser(ev, target)
	if target == "" {
		p.reply(ctx, ev, "❌ Please provide the user ID to demote!")
		return nil
	}
	if !validUserID(target) {
		p.reply(ctx, ev, "❌ Invalid user ID!")
		return nil
	}

	err := p.host.Store.RevokeModerator(ev.SenderID, target)
	p.outcome(ctx, ev, err,
		fmt.Sprintf("✅ Revoked Moderator from %s", target),
		"❌ Could not revoke moderator!")
	return nil
}

func (p *Plugin) listPermissions(ctx context.Context, ev *chat.Event) error {
	store := p.host.Store
	owners := store.Owners()

	isOwner := make(map[string]bool, len(owners))
	for _, id := range owners {
		isOwner[id] = true
	}
	var admins []string
	for _, id := range store.Admins() {
		if !isOwner[id] {
			admins = append(admins, id)
		}
	}
	moderators := store.Moderators()
	approved := store.ApprovedUsers()

	var b strings.Builder
	b.WriteString("📋 Permissions:\n\n")
	fmt.Fprintf(&b, "👑 Owners (%d):\n%s\n\n", len(owners), bulletList(owners, "none"))
	fmt.Fprintf(&b, "🔧 Admins (%d):\n%s\n\n", len(admins), bulletList(admins, "none"))
	fmt.Fprintf(&b, "👮 Moderators (%d):\n%s\n\n", len(moderators), bulletList(moderators, "none"))
	fmt.Fprintf(&b, "✅ Approved users (%d):\n%s", len(approved), bulletList(approved, "none"))

	p.reply(ctx, ev, b.String())
	return nil
}

func (p *Plugin) handleWhoAmI(ctx context.Context, ev *chat.Event, _ []string) error {
	store := p.host.Store
	role := store.RoleOf(ev.SenderID, ev.GroupID())

	lines := []string{
		"👤 Your info:",
		"🆔 User ID: " + ev.SenderID,
		"🎭 Role: " + role.String(),
	}
	if role == permissions.RoleModerator && store.RoleOf(ev.SenderID, "") == permissions.RoleUser {
		lines = append(lines, "📦 Scope: this group only")
	}
	if role == permissions.RoleUser && store.IsUserApproved(ev.SenderID) {
		lines = append(lines, "✅ Approved to use the bot everywhere")
	}

	p.reply(ctx, ev, strings.Join(lines, "\n"))
	return nil
}

func (p *Plugin) handleReloadPerms(ctx context.Context, ev *chat.Event, _ []string) error {
	if err := p.host.Store.Reload(); err != nil {
		p.host.Logger.Error("failed to reload permissions", "error", err)
		p.reply(ctx, ev, "❌ Failed to reload permissions!")
		return nil
	}
	p.reply(ctx, ev, "✅ Permissions reloaded!")
	return nil
}

func (p *Plugin) handleAdminStats(ctx context.Context, ev *chat.Event, _ []string) error {
	st := p.host.Store.Stats()

	var b strings.Builder
	b.WriteString("📊 Permission statistics:\n\n")
	fmt.Fprintf(&b, "👑 Owners: %d\n", st.Owners)
	fmt.Fprintf(&b, "🔧 Admins: %d\n", st.Admins)
	fmt.Fprintf(&b, "👮 Moderators: %d global, %d group-scoped\n", st.Moderators, st.GroupScopedMod)
	fmt.Fprintf(&b, "✅ Approved users: %d\n", st.ApprovedUsers)
	fmt.Fprintf(&b, "🏠 Groups: %d allowed, %d blocked, %d pending (%s)\n",
		st.AllowedGroups, st.BlockedGroups, st.PendingGroups, st.GroupMode)
	if p.host.Info.Storage != "" {
		fmt.Fprintf(&b, "📁 Storage: %s\n", p.host.Info.Storage)
	}
	if !st.LastUpdated.IsZero() {
		fmt.Fprintf(&b, "🕒 Last updated: %s\n", st.LastUpdated.Format(time.RFC3339))
	}

	if p.host.Dispatcher != nil {
		cs := p.host.Dispatcher.Stats()
		fmt.Fprintf(&b, "\n⌨️ Commands: %d registered, %d aliases, %d run\n", cs.Registered, cs.Aliases, cs.Total)
		for i, u := range cs.MostUsed {
			fmt.Fprintf(&b, "%d. %s (%d)\n", i+1, u.Command, u.Count)
		}
	}

	p.reply(ctx, ev, strings.TrimRight(b.String(), "\n"))
	return nil
}

func (p *Plugin) adminHelp() string {
	pre := p.host.Info.Prefix
	lines := []string{
		"🔧 Admin commands:",
		"",
		pre + "admin grant <userID> - grant global Moderator",
		pre + "admin revoke <userID> - revoke global Moderator",
		pre + "admin list - show permissions",
		pre + "whoami - show your role",
		pre + "reloadperms - reload permissions from disk",
		pre + "adminstats - permission statistics",
		"",
		"🏠 Groups:",
		pre + "group allow [groupID] - allow a group (or reply to the notification)",
		pre + "group block <groupID> - block a group",
		pre + "group unblock <groupID> - unblock a group",
		pre + "group list - list groups",
		pre + "group mode <whitelist|blacklist> - switch mode",
		pre + "group clear - clear all group settings",
		pre + "groupinfo - status of the current group",
		pre + "grouprun - approved groups",
		pre + "groupwait - groups waiting for approval",
		pre + "mod <add|rm|list> [userID|@mention] - moderators of the current group",
		pre + "kick <userID|@mention> [reason] - remove a user from the current group",
		"",
		"👤 Users:",
		pre + "user allow <userID> - approve a user everywhere",
		pre + "user disallow <userID> - remove an approval",
		pre + "user list - approved users",
	}
	return strings.Join(lines, "\n")
}
