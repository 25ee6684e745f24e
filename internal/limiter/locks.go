package limiter

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// ConversationLocks hands out one mutex per conversation. Entries are
// dropped once nobody holds or waits on them.
type ConversationLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewConversationLocks creates an empty lock registry
func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{locks: make(map[string]*lockEntry)}
}

// Lock blocks until key is free and returns its unlock function
func (l *ConversationLocks) Lock(key string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// ActiveCount returns the number of conversations currently locked or waited on
func (l *ConversationLocks) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
