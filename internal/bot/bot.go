// Package bot runs the inbound event loop and routes each admitted message
// to interceptors, the menu navigator, the command dispatcher or the
// fallback handlers.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"convox-bot/internal/approval"
	"convox-bot/internal/chat"
	"convox-bot/internal/command"
	"convox-bot/internal/ephemeral"
	"convox-bot/internal/limiter"
	"convox-bot/internal/menu"
	"convox-bot/internal/permissions"
	"convox-bot/internal/plugin"
)

const (
	defaultRequestTimeout = 5 * time.Minute
	drainTimeout          = 25 * time.Second
)

// Options tunes the pipeline
type Options struct {
	Prefix         string
	AutoMarkRead   bool
	RequestTimeout time.Duration
}

// Deps are the components the pipeline routes to
type Deps struct {
	Transport  chat.Transport
	Store      *permissions.Store
	Dispatcher *command.Dispatcher
	Navigator  *menu.Navigator
	Ephemeral  *ephemeral.Scheduler
	Approvals  *approval.Workflow
	Plugins    *plugin.Manager
	Locks      *limiter.ConversationLocks
}

// Bot owns the event loop
type Bot struct {
	Deps
	opts   Options
	logger *slog.Logger

	// Track active event processing
	active sync.WaitGroup
}

// New creates a bot. Missing Locks are created.
func New(deps Deps, opts Options, logger *slog.Logger) *Bot {
	if deps.Locks == nil {
		deps.Locks = limiter.NewConversationLocks()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	return &Bot{Deps: deps, opts: opts, logger: logger}
}

// Run consumes transport events until ctx is cancelled, then waits for
// in-flight events to finish.
func (b *Bot) Run(ctx context.Context) error {
	events, err := b.Transport.Listen(ctx)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	b.logger.Info("bot started", "identity", b.Transport.CurrentIdentity(), "prefix", b.opts.Prefix)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping bot, waiting for active requests")
			b.drain()
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				b.drain()
				return ctx.Err()
			}

			b.active.Add(1)
			go func(ev chat.Event) {
				defer b.active.Done()

				reqCtx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
				defer cancel()

				b.HandleEvent(reqCtx, &ev)
			}(ev)
		}
	}
}

func (b *Bot) drain() {
	done := make(chan struct{})
	go func() {
		b.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all active requests completed")
	case <-time.After(drainTimeout):
		b.logger.Warn("some requests may not have completed")
	}
}
