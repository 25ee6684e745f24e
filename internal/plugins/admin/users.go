package admin

import (
	"context"
	"fmt"
	"strings"

	"convox-bot/internal/chat"
)

func (p *Plugin) handleUser(ctx context.Context, ev *chat.Event, args []string) error {
	if len(args) == 0 {
		p.reply(ctx, ev, p.userHelp())
		return nil
	}

	store := p.host.Store
	action := strings.ToLower(args[0])
	if action == "list" {
		approved := store.ApprovedUsers()
		p.reply(ctx, ev, fmt.Sprintf("✅ Approved users (%d):\n%s", len(approved), bulletList(approved, "none")))
		return nil
	}

	var arg string
	if len(args) > 1 {
		arg = args[1]
	}
	target := targetUser(ev, arg)
	if !validUserID(target) {
		p.reply(ctx, ev, "❌ Please provide a valid user ID!")
		return nil
	}

	switch action {
	case "allow":
		p.outcome(ctx, ev, store.AllowUser(ev.SenderID, target),
			fmt.Sprintf("✅ Approved %s to use the bot everywhere", target),
			"❌ Could not approve this user!")
	case "disallow":
		p.outcome(ctx, ev, store.DisallowUser(ev.SenderID, target),
			fmt.Sprintf("❌ Removed approval for %s", target),
			"❌ Could not remove the approval!")
	default:
		p.reply(ctx, ev, fmt.Sprintf("❌ Unknown action \"%s\"!\n%s", args[0], p.userHelp()))
	}
	return nil
}

func (p *Plugin) handleMod(ctx context.Context, ev *chat.Event, args []string) error {
	store := p.host.Store
	groupID := ev.GroupID()
	if groupID == "" || !store.IsGroupAllowed(groupID) {
		p.reply(ctx, ev, "❌ This group is not approved.")
		return nil
	}
	if len(args) == 0 {
		p.reply(ctx, ev, p.modHelp())
		return nil
	}

	action := strings.ToLower(args[0])
	if action == "list" {
		mods := store.GroupModerators(groupID)
		if len(mods) == 0 {
			p.reply(ctx, ev, "👮 This group has no moderators.")
			return nil
		}
		lines := make([]string, len(mods))
		for i, id := range mods {
			lines[i] = fmt.Sprintf("%d. %s", i+1, id)
		}
		p.reply(ctx, ev, "👮 Group moderators:\n"+strings.Join(lines, "\n"))
		return nil
	}

	var arg string
	if len(args) > 1 {
		arg = args[1]
	}
	target := targetUser(ev, arg)
	if !validUserID(target) {
		p.reply(ctx, ev, "❌ Please provide a valid user ID or @mention.")
		return nil
	}

	switch action {
	case "add":
		p.outcome(ctx, ev, store.GrantGroupModerator(ev.SenderID, target, groupID),
			fmt.Sprintf("✅ %s is now a Moderator in this group.", target),
			"❌ Could not grant Moderator.")
	case "rm", "remove", "revoke":
		p.outcome(ctx, ev, store.RevokeGroupModerator(ev.SenderID, target, groupID),
			fmt.Sprintf("✅ %s is no longer a Moderator in this group.", target),
			"❌ Could not remove Moderator.")
	default:
		p.reply(ctx, ev, fmt.Sprintf("❌ Unknown action \"%s\".\n%s", args[0], p.modHelp()))
	}
	return nil
}

func (p *Plugin) handleKick(ctx context.Context, ev *chat.Event, args []string) error {
	if !ev.IsGroup {
		p.reply(ctx, ev, "❌ This command only works in groups.")
		return nil
	}

	var arg string
	reason := args
	if len(ev.Mentions) == 0 && len(args) > 0 {
		arg, reason = args[0], args[1:]
	}
	target := targetUser(ev, arg)
	if target == "" {
		p.reply(ctx, ev, "❌ Please @mention or provide the user ID to kick!")
		return nil
	}
	if !validUserID(target) {
		p.reply(ctx, ev, "❌ Invalid user ID!")
		return nil
	}
	if p.host.Store.IsAdmin(target) {
		p.reply(ctx, ev, "❌ Cannot kick an Admin or Owner!")
		return nil
	}

	info, err := p.host.Transport.GroupInfo(ctx, ev.ConversationID)
	if err != nil || !info.BotIsAdmin {
		p.reply(ctx, ev, "⚠️ The bot needs admin rights in this group to use this command.")
		return nil
	}

	if err := p.host.Transport.RemoveMember(ctx, ev.ConversationID, target); err != nil {
		p.host.Logger.Error("failed to kick user",
			"request_id", ev.RequestID,
			"group_id", ev.ConversationID,
			"target_id", target,
			"error", err,
		)
		p.reply(ctx, ev, "❌ Could not kick this user!")
		return nil
	}

	why := strings.Join(reason, " ")
	if why == "" {
		why = "No reason given"
	}
	p.reply(ctx, ev, fmt.Sprintf("👢 Kicked %s from the group\n📝 Reason: %s\n👮 By: %s", target, why, ev.SenderID))
	return nil
}

func (p *Plugin) userHelp() string {
	pre := p.host.Info.Prefix
	return "👤 User commands (Admin+):\n" +
		pre + "user allow <userID> - approve a user everywhere\n" +
		pre + "user disallow <userID> - remove an approval\n" +
		pre + "user list - approved users"
}

func (p *Plugin) modHelp() string {
	pre := p.host.Info.Prefix
	return "👮 Group moderator commands:\n" +
		pre + "mod add <userID|@mention> - grant Moderator in this group\n" +
		pre + "mod rm <userID|@mention> - remove Moderator in this group\n" +
		pre + "mod list - moderators of this group\n" +
		"• Admins and Owners can manage any approved group; Moderators only their own."
}
