package permissions

import (
	"sort"
	"time"
)

// GroupMode selects which group set is authoritative
type GroupMode string

const (
	ModeWhitelist GroupMode = "whitelist"
	ModeBlacklist GroupMode = "blacklist"
)

// Valid reports whether m is a recognized mode
func (m GroupMode) Valid() bool {
	return m == ModeWhitelist || m == ModeBlacklist
}

// PendingGroup is a group the bot joined that is not yet allowed or blocked
type PendingGroup struct {
	Name        string    `json:"name" yaml:"name"`
	Owner       string    `json:"owner" yaml:"owner"`
	FirstSeenAt time.Time `json:"firstSeenAt" yaml:"firstSeenAt"`
}

// Document is the persisted permission state
type Document struct {
	Moderators      []string                `json:"moderators" yaml:"moderators"`
	GroupModerators map[string][]string     `json:"groupModerators" yaml:"groupModerators"`
	AllowedUsers    []string                `json:"allowedUsers" yaml:"allowedUsers"`
	AllowedGroups   []string                `json:"allowedGroups" yaml:"allowedGroups"`
	BlockedGroups   []string                `json:"blockedGroups" yaml:"blockedGroups"`
	GroupMode       GroupMode               `json:"groupMode" yaml:"groupMode"`
	PendingGroups   map[string]PendingGroup `json:"pendingGroups" yaml:"pendingGroups"`
	ApprovalRefs    map[string]string       `json:"approvalRefs" yaml:"approvalRefs"`
	LastUpdated     time.Time               `json:"lastUpdated" yaml:"lastUpdated"`
}

// NewDocument returns an empty whitelist-mode document
func NewDocument() *Document {
	d := &Document{GroupMode: ModeWhitelist}
	d.Normalize()
	return d
}

// Normalize sorts and deduplicates every list and replaces nil collections
// with empty ones. A missing mode defaults to whitelist.
func (d *Document) Normalize() {
	d.Moderators = sortedUnique(d.Moderators)
	d.AllowedUsers = sortedUnique(d.AllowedUsers)
	d.AllowedGroups = sortedUnique(d.AllowedGroups)
	d.BlockedGroups = sortedUnique(d.BlockedGroups)

	if d.GroupModerators == nil {
		d.GroupModerators = make(map[string][]string)
	}
	for group, users := range d.GroupModerators {
		d.GroupModerators[group] = sortedUnique(users)
	}
	if d.PendingGroups == nil {
		d.PendingGroups = make(map[string]PendingGroup)
	}
	if d.ApprovalRefs == nil {
		d.ApprovalRefs = make(map[string]string)
	}
	if d.GroupMode == "" {
		d.GroupMode = ModeWhitelist
	}
}

func sortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
