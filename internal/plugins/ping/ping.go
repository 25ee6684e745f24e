// Package ping measures round-trip latency to the chat platform.
package ping

import (
	"context"
	"fmt"
	"time"

	"convox-bot/internal/chat"
	"convox-bot/internal/command"
	"convox-bot/internal/plugin"
)

type Plugin struct {
	sender *chat.Sender
	now    func() time.Time
}

func New() plugin.Plugin {
	return &Plugin{now: time.Now}
}

func (p *Plugin) Name() string { return "ping" }

func (p *Plugin) Initialize(_ context.Context, host *plugin.Host) error {
	p.sender = host.Sender
	return nil
}

func (p *Plugin) Cleanup(context.Context) error { return nil }

func (p *Plugin) RegisterCommands(r *command.Registry) {
	r.Register("ping", p.handlePing, command.Options{
		Description: "Check bot latency",
		Category:    "utility",
		Cooldown:    2,
		Aliases:     []string{"pong", "latency"},
	})
}

func (p *Plugin) handlePing(ctx context.Context, ev *chat.Event, _ []string) error {
	start := p.now()
	if _, err := p.sender.SendErr(ctx, ev.ConversationID, "🏓 Pong!"); err != nil {
		return err
	}
	latency := p.now().Sub(start)

	p.sender.Reply(ctx, ev.ConversationID, fmt.Sprintf(
		"🏓 Pong!\n\n📊 Info:\n• Latency: %dms\n• Status: %s",
		latency.Milliseconds(), status(latency),
	))
	return nil
}

func status(latency time.Duration) string {
	switch {
	case latency < 100*time.Millisecond:
		return "🟢 Good"
	case latency < 300*time.Millisecond:
		return "🟡 Normal"
	default:
		return "🔴 Slow"
	}
}
