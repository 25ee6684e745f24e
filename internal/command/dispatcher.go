package command

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"convox-bot/internal/chat"
	apperrors "convox-bot/internal/errors"
	"convox-bot/internal/limiter"
	"convox-bot/internal/permissions"
)

// Result is the outcome of one dispatch
type Result int

const (
	ResultOK Result = iota
	ResultNotFound
	ResultDisabled
	ResultDenied
	ResultCooldown
	ResultHandlerFault
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNotFound:
		return "not_found"
	case ResultDisabled:
		return "disabled"
	case ResultDenied:
		return "denied"
	case ResultCooldown:
		return "cooldown"
	case ResultHandlerFault:
		return "handler_fault"
	default:
		return "unknown"
	}
}

// RoleResolver resolves a user's role, optionally scoped to a group
type RoleResolver interface {
	RoleOf(userID, groupID string) permissions.Role
}

// Dispatcher runs the per-command checks and invokes handlers
type Dispatcher struct {
	registry  *Registry
	roles     RoleResolver
	cooldowns *limiter.Cooldowns
	sender    *chat.Sender
	logger    *slog.Logger
	stats     *usageStats
}

// NewDispatcher wires a dispatcher
func NewDispatcher(registry *Registry, roles RoleResolver, cooldowns *limiter.Cooldowns, sender *chat.Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		roles:     roles,
		cooldowns: cooldowns,
		sender:    sender,
		logger:    logger,
		stats:     newUsageStats(),
	}
}

// Registry returns the command registry
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch resolves name and runs it for ev. Every failure produces exactly
// one reply in the conversation; handler faults never escape.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *chat.Event, name string, args []string) Result {
	log := d.logger.With(
		"request_id", ev.RequestID,
		"user_id", ev.SenderID,
		"conversation_id", ev.ConversationID,
		"command", name,
	)

	cmd, ok := d.registry.Lookup(name)
	if !ok {
		d.sender.Reply(ctx, ev.ConversationID, fmt.Sprintf(
			"❌ Command \"%s\" does not exist!\nType \"%smenu\" to see the command list.",
			name, d.registry.Prefix(),
		))
		return ResultNotFound
	}

	if !cmd.Enabled {
		d.sender.Reply(ctx, ev.ConversationID, fmt.Sprintf("❌ Command \"%s\" is disabled!", name))
		return ResultDisabled
	}

	role := d.roles.RoleOf(ev.SenderID, ev.GroupID())

	if cmd.AdminOnly && !role.Satisfies(permissions.RoleAdmin) {
		log.Info("command denied", "reason", "admin_only", "role", role)
		d.sender.Reply(ctx, ev.ConversationID, apperrors.ErrNoPermission.UserMsg)
		return ResultDenied
	}

	if cmd.MinRole > permissions.RoleUser && !role.Satisfies(cmd.MinRole) {
		log.Info("command denied", "reason", "min_role", "role", role, "required", cmd.MinRole)
		d.sender.Reply(ctx, ev.ConversationID, fmt.Sprintf(
			"❌ This command requires %s or higher. Your current role: %s",
			cmd.MinRole, role,
		))
		return ResultDenied
	}

	if remaining, ok := d.cooldowns.Acquire(ev.SenderID, cmd.Name, cmd.Cooldown); !ok {
		d.sender.Reply(ctx, ev.ConversationID, fmt.Sprintf(
			"⏰ Please wait %d seconds before using this command again!", remaining,
		))
		return ResultCooldown
	}

	d.stats.record(cmd.Name, cmd.Category)

	log.Debug("executing command", "resolved", cmd.Name, "args", len(args))
	if err := d.invoke(ctx, cmd, ev, args); err != nil {
		log.Error("command failed", "error", err, "kind", apperrors.KindOf(err))
		d.sender.Reply(ctx, ev.ConversationID, apperrors.GetUserMessage(err))
		return ResultHandlerFault
	}
	return ResultOK
}

func (d *Dispatcher) invoke(ctx context.Context, cmd Descriptor, ev *chat.Event, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command panicked",
				"command", cmd.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = apperrors.Wrap(fmt.Errorf("panic in %s: %v", cmd.Name, r), apperrors.KindHandlerFault, "", false)
		}
	}()

	if cmd.Handler == nil {
		return apperrors.Wrap(fmt.Errorf("command %s has no handler", cmd.Name), apperrors.KindHandlerFault, "", false)
	}
	return cmd.Handler(ctx, ev, args)
}

// Stats returns a usage summary
func (d *Dispatcher) Stats() Stats {
	s := d.stats.snapshot()
	s.Registered = d.registry.Count()
	s.Aliases = d.registry.AliasCount()
	return s
}
