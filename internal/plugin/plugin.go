// Package plugin defines the capability interfaces command plugins implement
// and loads them from a static list.
package plugin

import (
	"context"
	"log/slog"
	"time"

	"convox-bot/internal/approval"
	"convox-bot/internal/chat"
	"convox-bot/internal/command"
	"convox-bot/internal/permissions"
)

// BotInfo is static process information plugins may display
type BotInfo struct {
	Name      string
	Version   string
	Prefix    string
	Storage   string
	StartedAt time.Time
}

// Host is what the core hands to each plugin at initialization
type Host struct {
	Registry   *command.Registry
	Dispatcher *command.Dispatcher
	Store      *permissions.Store
	Approvals  *approval.Workflow
	Sender     *chat.Sender
	Transport  chat.Transport
	Logger     *slog.Logger
	Info       BotInfo
}

// Plugin is the required capability set
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, host *Host) error
	RegisterCommands(registry *command.Registry)
	Cleanup(ctx context.Context) error
}

// Interceptor sees every admitted message before command parsing. Returning
// true consumes the message.
type Interceptor interface {
	InterceptMessage(ctx context.Context, ev *chat.Event) (bool, error)
}

// FallbackHandler receives admitted messages that are neither commands nor
// numeric menu replies.
type FallbackHandler interface {
	HandleUnprefixed(ctx context.Context, ev *chat.Event) error
}

// Factory builds a fresh plugin instance
type Factory func() Plugin

// Entry names a plugin factory
type Entry struct {
	Name    string
	Factory Factory
}
