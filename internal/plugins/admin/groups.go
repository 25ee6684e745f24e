package admin

import (
	"context"
	"fmt"
	"strings"

	"convox-bot/internal/chat"
	"convox-bot/internal/permissions"
)

func (p *Plugin) handleGroup(ctx context.Context, ev *chat.Event, args []string) error {
	if len(args) == 0 {
		p.reply(ctx, ev, p.groupHelp())
		return nil
	}

	var arg string
	if len(args) > 1 {
		arg = args[1]
	}

	store := p.host.Store
	switch strings.ToLower(args[0]) {
	case "allow":
		target, _ := p.host.Approvals.ResolveTarget(ev, arg)
		p.approve(ctx, ev, target)

	case "disallow":
		if id, ok := p.groupArg(ctx, ev, arg); ok {
			p.outcome(ctx, ev, store.DisallowGroup(ev.SenderID, id),
				fmt.Sprintf("❌ Group %s may no longer use the bot", id),
				"❌ Could not disallow this group!")
		}

	case "block":
		if id, ok := p.groupArg(ctx, ev, arg); ok {
			p.outcome(ctx, ev, store.BlockGroup(ev.SenderID, id),
				fmt.Sprintf("🚫 Blocked group %s", id),
				"❌ Could not block this group!")
		}

	case "unblock":
		if id, ok := p.groupArg(ctx, ev, arg); ok {
			p.outcome(ctx, ev, store.UnblockGroup(ev.SenderID, id),
				fmt.Sprintf("✅ Unblocked group %s", id),
				"❌ Could not unblock this group!")
		}

	case "list":
		p.listGroups(ctx, ev)

	case "mode":
		mode := strings.ToLower(arg)
		if mode == "" {
			p.reply(ctx, ev, "❌ Please provide a mode (whitelist or blacklist)!")
			return nil
		}
		if !permissions.GroupMode(mode).Valid() {
			p.reply(ctx, ev, "❌ Mode must be \"whitelist\" or \"blacklist\"!")
			return nil
		}
		p.outcome(ctx, ev, store.SetGroupMode(ev.SenderID, mode),
			fmt.Sprintf("🔄 Switched to %s mode", mode),
			"❌ Could not change the mode!")

	case "clear":
		p.outcome(ctx, ev, store.ClearGroupSettings(ev.SenderID),
			"🗑️ Cleared all group settings",
			"❌ Could not clear group settings!")

	default:
		p.reply(ctx, ev, fmt.Sprintf("❌ Unknown action \"%s\"!\n%s", args[0], p.groupHelp()))
	}
	return nil
}

// groupArg validates an explicit group ID or falls back to the current group
func (p *Plugin) groupArg(ctx context.Context, ev *chat.Event, arg string) (string, bool) {
	id := arg
	if id == "" {
		id = ev.GroupID()
	}
	if !validGroupID(id) {
		p.reply(ctx, ev, "❌ Invalid group ID!")
		return "", false
	}
	return id, true
}

func (p *Plugin) approve(ctx context.Context, ev *chat.Event, target string) {
	if !validGroupID(target) {
		p.reply(ctx, ev, "❌ Invalid group ID!")
		return
	}

	res, err := p.host.Approvals.Approve(ctx, ev.SenderID, target)
	if err != nil {
		p.outcome(ctx, ev, err, "", "❌ Could not allow this group!")
		return
	}

	text := fmt.Sprintf("✅ Group %s may now use the bot", target)
	if res.PromotedID != "" {
		text += fmt.Sprintf("\n👮 Group owner %s was promoted to Moderator.", res.PromotedID)
	}
	if res.PersistErr != nil {
		text += "\n" + permissions.ErrPersist.UserMsg
	}
	p.reply(ctx, ev, text)
}

func (p *Plugin) listGroups(ctx context.Context, ev *chat.Event) {
	store := p.host.Store
	allowed := store.AllowedGroups()
	blocked := store.BlockedGroups()

	mode := "Whitelist (only allowed groups)"
	if store.GroupMode() == permissions.ModeBlacklist {
		mode = "Blacklist (all groups except blocked)"
	}

	var b strings.Builder
	b.WriteString("🏠 Group access:\n\n")
	fmt.Fprintf(&b, "📋 Mode: %s\n\n", mode)
	fmt.Fprintf(&b, "✅ Allowed (%d):\n%s\n\n", len(allowed), bulletList(allowed, "none"))
	fmt.Fprintf(&b, "❌ Blocked (%d):\n%s", len(blocked), bulletList(blocked, "none"))
	p.reply(ctx, ev, b.String())
}

func (p *Plugin) handleGroupInfo(ctx context.Context, ev *chat.Event, _ []string) error {
	if !ev.IsGroup {
		p.reply(ctx, ev, "ℹ️ This is a direct conversation, not a group.")
		return nil
	}

	store := p.host.Store
	status := "Not allowed to use the bot"
	if store.IsGroupAllowed(ev.ConversationID) {
		status = "Allowed to use the bot"
	}

	var b strings.Builder
	b.WriteString("🏠 Group info:\n\n")
	fmt.Fprintf(&b, "🆔 Group ID: %s\n", ev.ConversationID)
	fmt.Fprintf(&b, "📋 Mode: %s\n", store.GroupMode())
	fmt.Fprintf(&b, "✅ Status: %s\n", status)
	if mods := store.GroupModerators(ev.ConversationID); len(mods) > 0 {
		fmt.Fprintf(&b, "👮 Group moderators: %s\n", strings.Join(mods, ", "))
	}

	if store.IsAdmin(ev.SenderID) {
		st := store.Stats()
		b.WriteString("\n📊 Totals (Admin/Owner):\n")
		fmt.Fprintf(&b, "• Allowed groups: %d\n", st.AllowedGroups)
		fmt.Fprintf(&b, "• Blocked groups: %d\n", st.BlockedGroups)
		fmt.Fprintf(&b, "• Pending groups: %d", st.PendingGroups)
	}

	p.reply(ctx, ev, strings.TrimRight(b.String(), "\n"))
	return nil
}

func (p *Plugin) handleGroupRun(ctx context.Context, ev *chat.Event, _ []string) error {
	allowed := p.host.Store.AllowedGroups()
	if len(allowed) == 0 {
		p.reply(ctx, ev, "Approved groups\n• none")
		return nil
	}

	rows := make([]string, 0, len(allowed))
	for i, id := range allowed {
		name, owner := "N/A", "N/A"
		if info, err := p.host.Transport.GroupInfo(ctx, id); err == nil {
			if info.Name != "" {
				name = info.Name
			}
			if len(info.AdminIDs) > 0 {
				owner = info.AdminIDs[0]
			}
		}
		rows = append(rows, fmt.Sprintf("%d|%s|%s|%s", i+1, id, name, owner))
	}
	p.reply(ctx, ev, "Approved groups\n"+strings.Join(rows, "\n"))
	return nil
}

func (p *Plugin) handleGroupWait(ctx context.Context, ev *chat.Event, _ []string) error {
	pending := p.host.Store.PendingGroups()
	if len(pending) == 0 {
		p.reply(ctx, ev, "Groups waiting for approval\n• none")
		return nil
	}

	rows := make([]string, 0, len(pending))
	for i, pg := range pending {
		name, owner := pg.Name, pg.Owner
		if name == "" {
			name = "N/A"
		}
		if owner == "" {
			owner = "N/A"
		}
		rows = append(rows, fmt.Sprintf("%d|%s|%s|%s", i+1, pg.GroupID, name, owner))
	}
	p.reply(ctx, ev, "Groups waiting for approval\n"+strings.Join(rows, "\n"))
	return nil
}

func (p *Plugin) groupHelp() string {
	pre := p.host.Info.Prefix
	lines := []string{
		"🏠 Group commands:",
		"",
		pre + "group allow [groupID] - allow a group (or reply to the notification)",
		pre + "group disallow [groupID] - remove a group from the allowed list",
		pre + "group block [groupID] - block a group",
		pre + "group unblock [groupID] - unblock a group",
		pre + "group list - list groups",
		pre + "group mode <whitelist|blacklist> - switch mode (Owner)",
		pre + "group clear - clear all group settings (Owner)",
		"",
		"📋 Modes:",
		"• whitelist: only allowed groups can use the bot",
		"• blacklist: every group except blocked ones can use the bot",
	}
	return strings.Join(lines, "\n")
}
