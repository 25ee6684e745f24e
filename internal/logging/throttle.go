package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Throttle emits at most one line per key per interval. Lines dropped in
// between are counted and reported on the next emission.
type Throttle struct {
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
	dropped  map[string]int
}

// NewThrottle creates a throttled logger; interval <= 0 disables throttling
func NewThrottle(logger *slog.Logger, interval time.Duration) *Throttle {
	return &Throttle{
		logger:   logger,
		interval: interval,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
		dropped:  make(map[string]int),
	}
}

// Log writes msg at level unless key was logged within the interval.
// It reports whether the line was emitted.
func (t *Throttle) Log(ctx context.Context, level slog.Level, key, msg string, args ...any) bool {
	t.mu.Lock()
	now := t.now()
	if last, ok := t.lastSeen[key]; ok && t.interval > 0 && now.Sub(last) < t.interval {
		t.dropped[key]++
		t.mu.Unlock()
		return false
	}
	suppressed := t.dropped[key]
	t.dropped[key] = 0
	t.lastSeen[key] = now
	t.mu.Unlock()

	if suppressed > 0 {
		args = append(args, "suppressed", suppressed)
	}
	t.logger.Log(ctx, level, msg, args...)
	return true
}

// Warn is Log at warn level
func (t *Throttle) Warn(ctx context.Context, key, msg string, args ...any) bool {
	return t.Log(ctx, slog.LevelWarn, key, msg, args...)
}
