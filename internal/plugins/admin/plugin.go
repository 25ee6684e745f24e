// Package admin provides permission, group and user management commands.
package admin

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"convox-bot/internal/approval"
	"convox-bot/internal/chat"
	"convox-bot/internal/command"
	"convox-bot/internal/permissions"
	"convox-bot/internal/plugin"
)

var (
	userIDPattern  = regexp.MustCompile(`^\d{5,20}$`)
	groupIDPattern = regexp.MustCompile(`^-?\d{5,20}$`)
)

// Plugin implements plugin.Plugin and plugin.FallbackHandler
type Plugin struct {
	host *plugin.Host
}

// New is the plugin factory
func New() plugin.Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return "admin" }

func (p *Plugin) Initialize(_ context.Context, host *plugin.Host) error {
	if host.Store == nil || host.Approvals == nil {
		return errors.New("admin plugin requires a permission store and approval workflow")
	}
	p.host = host
	return nil
}

func (p *Plugin) Cleanup(context.Context) error { return nil }

func (p *Plugin) RegisterCommands(r *command.Registry) {
	pre := r.Prefix()

	r.Register("admin", p.handleAdmin, command.Options{
		Description: "Manage global moderators",
		Usage:       pre + "admin <grant|revoke|list|whoami> [userID]",
		Example:     pre + "admin grant 1000123456789",
		Category:    "admin",
		MinRole:     permissions.RoleOwner,
		Aliases:     []string{"adm", "permission"},
	})
	r.Register("whoami", p.handleWhoAmI, command.Options{
		Description: "Show your own role",
		Category:    "info",
		Aliases:     []string{"me", "role"},
	})
	r.Register("reloadperms", p.handleReloadPerms, command.Options{
		Description: "Reload the permission store from disk",
		Category:    "admin",
		MinRole:     permissions.RoleOwner,
		Aliases:     []string{"reloadpermissions", "reload"},
	})
	r.Register("adminstats", p.handleAdminStats, command.Options{
		Description: "Show permission and command statistics",
		Category:    "admin",
		MinRole:     permissions.RoleAdmin,
		Aliases:     []string{"astats", "permissions"},
	})
	r.Register("group", p.handleGroup, command.Options{
		Description: "Manage group access",
		Usage:       pre + "group <allow|disallow|block|unblock|list|mode|clear> [groupID]",
		Example:     pre + "group allow -1001234567890",
		Category:    "admin",
		MinRole:     permissions.RoleAdmin,
		Aliases:     []string{"groups", "chat"},
	})
	r.Register("groupinfo", p.handleGroupInfo, command.Options{
		Description: "Show access status of the current group",
		Category:    "info",
		Aliases:     []string{"ginfo", "chatinfo"},
	})
	r.Register("user", p.handleUser, command.Options{
		Description: "Manage approved users",
		Usage:       pre + "user <allow|disallow|list> [userID]",
		Example:     pre + "user allow 1000123456789",
		Category:    "admin",
		MinRole:     permissions.RoleAdmin,
		Aliases:     []string{"approve", "uia"},
	})
	r.Register("grouprun", p.handleGroupRun, command.Options{
		Description: "List approved groups",
		Category:    "admin",
		MinRole:     permissions.RoleAdmin,
	})
	r.Register("groupwait", p.handleGroupWait, command.Options{
		Description: "List groups waiting for approval",
		Category:    "admin",
		MinRole:     permissions.RoleAdmin,
	})
	r.Register("kick", p.handleKick, command.Options{
		Description: "Remove a user from this group (the bot must be a group admin)",
		Usage:       pre + "kick <userID|@mention> [reason]",
		Example:     pre + "kick 1000123456789 spam",
		Category:    "moderation",
		MinRole:     permissions.RoleModerator,
	})
	r.Register("mod", p.handleMod, command.Options{
		Description: "Manage moderators of the current group",
		Usage:       pre + "mod <add|rm|list> [userID|@mention]",
		Example:     pre + "mod add 1000123456789",
		Category:    "moderation",
		MinRole:     permissions.RoleModerator,
	})
}

// HandleUnprefixed lets an admin approve a group by replying to the
// notification with a bare "approve".
func (p *Plugin) HandleUnprefixed(ctx context.Context, ev *chat.Event) error {
	if ev.IsGroup || ev.Replied == nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(ev.Body)) {
	case "approve", "allow", "ok":
	default:
		return nil
	}
	if !p.host.Store.IsAdmin(ev.SenderID) {
		return nil
	}

	target, source := p.host.Approvals.ResolveTarget(ev, "")
	if source != approval.SourceRef && source != approval.SourceReplied {
		return nil
	}
	p.approve(ctx, ev, target)
	return nil
}

func (p *Plugin) reply(ctx context.Context, ev *chat.Event, text string) {
	p.host.Sender.Reply(ctx, ev.ConversationID, text)
}

// outcome renders a store mutation result
func (p *Plugin) outcome(ctx context.Context, ev *chat.Event, err error, ok, failed string) {
	switch {
	case err == nil:
		p.reply(ctx, ev, ok)
	case errors.Is(err, permissions.ErrPersist):
		p.reply(ctx, ev, ok+"\n"+permissions.ErrPersist.UserMsg)
	default:
		p.host.Logger.Info("admin action refused",
			"request_id", ev.RequestID,
			"user_id", ev.SenderID,
			"error", err,
		)
		p.reply(ctx, ev, failed)
	}
}

func bulletList(items []string, empty string) string {
	if len(items) == 0 {
		return "• " + empty
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "• " + item
	}
	return strings.Join(lines, "\n")
}

func validUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

func validGroupID(id string) bool {
	return groupIDPattern.MatchString(id)
}

// targetUser picks the user an action applies to: a mention, then the
// author of the replied message, then the first argument.
func targetUser(ev *chat.Event, arg string) string {
	if len(ev.Mentions) > 0 {
		return ev.Mentions[0]
	}
	if arg != "" {
		return strings.TrimPrefix(arg, "@")
	}
	if ev.Replied != nil {
		return ev.Replied.SenderID
	}
	return ""
}
