// Package chattest provides an in-memory chat.Transport for tests.
package chattest

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"convox-bot/internal/chat"
)

// Sent is one message recorded by the fake transport
type Sent struct {
	ConversationID string
	MessageID      string
	Text           string
}

// Transport records sends and retractions in memory
type Transport struct {
	mu        sync.Mutex
	SelfID    string
	Groups    map[string]chat.GroupInfo
	sent      []Sent
	retracted []string
	read      []string
	removed   []string
	nextID    int
	failSends int

	events chan chat.Event
}

// New returns an empty fake transport identified as selfID
func New(selfID string) *Transport {
	return &Transport{
		SelfID: selfID,
		Groups: make(map[string]chat.GroupInfo),
		events: make(chan chat.Event, 16),
	}
}

// FailNextSends makes the next n SendMessage calls fail
func (t *Transport) FailNextSends(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failSends = n
}

func (t *Transport) SendMessage(_ context.Context, conversationID, content string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failSends > 0 {
		t.failSends--
		return "", errors.New("transport unavailable")
	}
	t.nextID++
	id := "m" + strconv.Itoa(t.nextID)
	t.sent = append(t.sent, Sent{ConversationID: conversationID, MessageID: id, Text: content})
	return id, nil
}

func (t *Transport) RetractMessage(_ context.Context, _ string, messageID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retracted = append(t.retracted, messageID)
	return nil
}

func (t *Transport) MarkRead(_ context.Context, conversationID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.read = append(t.read, conversationID)
	return nil
}

func (t *Transport) CurrentIdentity() string {
	return t.SelfID
}

func (t *Transport) GroupInfo(_ context.Context, conversationID string) (chat.GroupInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.Groups[conversationID]
	if !ok {
		return chat.GroupInfo{}, errors.New("group not found")
	}
	return info, nil
}

func (t *Transport) RemoveMember(_ context.Context, conversationID, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.Groups[conversationID]; !ok {
		return errors.New("group not found")
	}
	t.removed = append(t.removed, conversationID+"/"+userID)
	return nil
}

func (t *Transport) Listen(ctx context.Context) (<-chan chat.Event, error) {
	out := make(chan chat.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-t.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Push queues an inbound event for Listen
func (t *Transport) Push(ev chat.Event) {
	t.events <- ev
}

// Sent returns a copy of every delivered message
func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent(nil), t.sent...)
}

// LastText returns the text of the most recent message, or ""
func (t *Transport) LastText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return ""
	}
	return t.sent[len(t.sent)-1].Text
}

// Retracted returns the IDs of retracted messages in order
func (t *Transport) Retracted() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.retracted...)
}

// MarkedRead returns the conversations marked read
func (t *Transport) MarkedRead() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.read...)
}

// Removed returns "conversation/user" pairs passed to RemoveMember
func (t *Transport) Removed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.removed...)
}

// Reset clears recorded sends and retractions
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
	t.retracted = nil
	t.read = nil
	t.removed = nil
}
