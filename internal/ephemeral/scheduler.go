// Package ephemeral retracts transient bot messages after a TTL or when a
// newer view supersedes them.
package ephemeral

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"convox-bot/internal/chat"
)

// DefaultTTL is how long menu views stay visible
const DefaultTTL = 60 * time.Second

const retractTimeout = 10 * time.Second

type entry struct {
	messageID string
	timer     *time.Timer
	done      bool
}

// Scheduler tracks pending retractions per conversation
type Scheduler struct {
	transport chat.Transport
	ttl       time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[string][]*entry
}

// NewScheduler creates a scheduler; ttl <= 0 uses DefaultTTL
func NewScheduler(transport chat.Transport, ttl time.Duration, logger *slog.Logger) *Scheduler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Scheduler{
		transport: transport,
		ttl:       ttl,
		logger:    logger,
		entries:   make(map[string][]*entry),
	}
}

// TTL returns the default time to live
func (s *Scheduler) TTL() time.Duration {
	return s.ttl
}

// Schedule retracts messageID after ttl unless ClearAll gets there first.
// ttl <= 0 uses the scheduler default.
func (s *Scheduler) Schedule(conversationID, messageID string, ttl time.Duration) {
	if messageID == "" {
		return
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	e := &entry{messageID: messageID}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.timer = time.AfterFunc(ttl, func() {
		s.expire(conversationID, e)
	})
	s.entries[conversationID] = append(s.entries[conversationID], e)
}

func (s *Scheduler) expire(conversationID string, e *entry) {
	s.mu.Lock()
	if e.done {
		s.mu.Unlock()
		return
	}
	e.done = true
	s.removeLocked(conversationID, e)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), retractTimeout)
	defer cancel()
	s.retract(ctx, conversationID, e.messageID)
}

func (s *Scheduler) removeLocked(conversationID string, target *entry) {
	list := s.entries[conversationID]
	for i, e := range list {
		if e == target {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.entries, conversationID)
		return
	}
	s.entries[conversationID] = list
}

// ClearAll cancels every pending timer for the conversation and retracts
// the tracked messages immediately.
func (s *Scheduler) ClearAll(ctx context.Context, conversationID string) {
	s.mu.Lock()
	list := s.entries[conversationID]
	delete(s.entries, conversationID)

	var ids []string
	for _, e := range list {
		if e.done {
			continue
		}
		e.done = true
		e.timer.Stop()
		ids = append(ids, e.messageID)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.retract(ctx, conversationID, id)
	}
}

// Pending returns the number of tracked messages for a conversation
func (s *Scheduler) Pending(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[conversationID])
}

// Stop cancels every timer without retracting anything
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conv, list := range s.entries {
		for _, e := range list {
			e.done = true
			e.timer.Stop()
		}
		delete(s.entries, conv)
	}
}

func (s *Scheduler) retract(ctx context.Context, conversationID, messageID string) {
	if err := s.transport.RetractMessage(ctx, conversationID, messageID); err != nil {
		s.logger.Debug("retract failed",
			"conversation_id", conversationID,
			"message_id", messageID,
			"error", err,
		)
	}
}
