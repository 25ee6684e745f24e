package limiter

import (
	"sync"
	"time"
)

type cooldownKey struct {
	user    string
	command string
}

// Cooldowns tracks the last invocation of each command per user
type Cooldowns struct {
	mu   sync.Mutex
	last map[cooldownKey]time.Time
	now  func() time.Time
}

// NewCooldowns creates an empty cooldown tracker
func NewCooldowns() *Cooldowns {
	return &Cooldowns{
		last: make(map[cooldownKey]time.Time),
		now:  time.Now,
	}
}

// SetClock replaces the time source
func (c *Cooldowns) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Acquire charges the cooldown for user running command.
// Returns the remaining whole seconds and false if the user is still cooling
// down; the previous timestamp is kept in that case.
func (c *Cooldowns) Acquire(userID, command string, cooldownSec int) (remaining int, ok bool) {
	if cooldownSec <= 0 {
		return 0, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cooldownKey{user: userID, command: command}
	now := c.now()
	if last, exists := c.last[key]; exists {
		elapsed := now.Sub(last)
		if elapsed < time.Duration(cooldownSec)*time.Second {
			return cooldownSec - int(elapsed/time.Second), false
		}
	}

	c.last[key] = now
	return 0, true
}

// Remaining reports the seconds left without charging
func (c *Cooldowns) Remaining(userID, command string, cooldownSec int) int {
	if cooldownSec <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last, exists := c.last[cooldownKey{user: userID, command: command}]
	if !exists {
		return 0
	}
	elapsed := c.now().Sub(last)
	if elapsed >= time.Duration(cooldownSec)*time.Second {
		return 0
	}
	return cooldownSec - int(elapsed/time.Second)
}

// Len returns the number of tracked entries
func (c *Cooldowns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}
