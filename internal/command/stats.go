package command

import (
	"sort"
	"sync"
)

const mostUsedLimit = 10

// Usage is one command's invocation count
type Usage struct {
	Command string
	Count   int
}

// Stats summarizes dispatched commands since startup
type Stats struct {
	Total      int
	ByCategory map[string]int
	MostUsed   []Usage
	Registered int
	Aliases    int
}

type usageStats struct {
	mu         sync.Mutex
	total      int
	byCategory map[string]int
	byCommand  map[string]int
}

func newUsageStats() *usageStats {
	return &usageStats{
		byCategory: make(map[string]int),
		byCommand:  make(map[string]int),
	}
}

func (u *usageStats) record(command, category string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.total++
	u.byCategory[category]++
	u.byCommand[command]++
}

func (u *usageStats) snapshot() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()

	s := Stats{
		Total:      u.total,
		ByCategory: make(map[string]int, len(u.byCategory)),
	}
	for k, v := range u.byCategory {
		s.ByCategory[k] = v
	}
	for cmd, n := range u.byCommand {
		s.MostUsed = append(s.MostUsed, Usage{Command: cmd, Count: n})
	}
	sort.Slice(s.MostUsed, func(i, j int) bool {
		if s.MostUsed[i].Count == s.MostUsed[j].Count {
			return s.MostUsed[i].Command < s.MostUsed[j].Command
		}
		return s.MostUsed[i].Count > s.MostUsed[j].Count
	})
	if len(s.MostUsed) > mostUsedLimit {
		s.MostUsed = s.MostUsed[:mostUsedLimit]
	}
	return s
}
