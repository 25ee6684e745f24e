package bot

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"convox-bot/internal/chat"
)

// HandleEvent processes one inbound event. Events for the same
// conversation are handled one at a time.
func (b *Bot) HandleEvent(ctx context.Context, ev *chat.Event) {
	if ev.RequestID == "" {
		ev.RequestID = uuid.New().String()
	}

	unlock := b.Locks.Lock(ev.ConversationID)
	defer unlock()

	log := b.logger.With(
		"request_id", ev.RequestID,
		"conversation_id", ev.ConversationID,
		"user_id", ev.SenderID,
	)

	if ev.Type == chat.EventBotAdded {
		if err := b.Approvals.HandleBotAdded(ctx, ev); err != nil {
			log.Error("failed to handle bot added", "error", err)
		}
		return
	}

	if ev.SenderID == "" || ev.SenderID == b.Transport.CurrentIdentity() {
		return
	}

	body := strings.TrimSpace(ev.Body)
	if body == "" {
		return
	}

	if !b.Store.HasAccess(ev.SenderID, ev.GroupID()) {
		log.Debug("message dropped", "reason", "no_access")
		return
	}

	if b.opts.AutoMarkRead {
		if err := b.Transport.MarkRead(ctx, ev.ConversationID); err != nil {
			log.Debug("mark read failed", "error", err)
		}
	}

	if b.Plugins != nil {
		for _, ic := range b.Plugins.Interceptors() {
			consumed, err := ic.InterceptMessage(ctx, ev)
			if err != nil {
				log.Warn("interceptor failed", "error", err)
				continue
			}
			if consumed {
				return
			}
		}
	}

	if isDigits(body) {
		b.Navigator.HandleNumericSelection(ctx, ev, body)
		return
	}

	if name, args, ok := b.parseCommand(body); ok {
		if b.Navigator.IsMenuCommand(name) {
			b.Navigator.HandleMenuCommand(ctx, ev, name, args)
			return
		}
		b.Ephemeral.ClearAll(ctx, ev.ConversationID)
		res := b.Dispatcher.Dispatch(ctx, ev, name, args)
		log.Debug("command dispatched", "command", name, "result", res)
		return
	}

	if b.Plugins != nil {
		for _, fb := range b.Plugins.Fallbacks() {
			if err := fb.HandleUnprefixed(ctx, ev); err != nil {
				log.Warn("fallback handler failed", "error", err)
			}
		}
	}
}

// parseCommand splits a prefixed body into a lowercased command name and
// its arguments.
func (b *Bot) parseCommand(body string) (string, []string, bool) {
	prefix := b.opts.Prefix
	if prefix == "" || !strings.HasPrefix(body, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(body[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
