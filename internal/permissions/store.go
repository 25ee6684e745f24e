package permissions

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type set map[string]struct{}

func newSet(items []string) set {
	s := make(set, len(items))
	for _, v := range items {
		if v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Store owns role resolution, group access policy, approved users, pending
// groups and approval references. Owners and admins come from process
// configuration and are never modified here.
type Store struct {
	backend Backend
	owners  set
	admins  set
	logger  *slog.Logger
	now     func() time.Time

	mu              sync.RWMutex
	moderators      set
	groupModerators map[string]set
	allowedUsers    set
	allowedGroups   set
	blockedGroups   set
	groupMode       GroupMode
	pendingGroups   map[string]PendingGroup
	approvalRefs    map[string]string
	lastUpdated     time.Time
}

// PendingGroupEntry is a pending group together with its ID
type PendingGroupEntry struct {
	GroupID string
	PendingGroup
}

// Stats summarizes the store for admin views
type Stats struct {
	Owners         int
	Admins         int
	Moderators     int
	ApprovedUsers  int
	AllowedGroups  int
	BlockedGroups  int
	PendingGroups  int
	GroupMode      GroupMode
	LastUpdated    time.Time
	GroupScopedMod int
}

// NewStore loads the persisted document from backend. When nothing has been
// saved yet an empty document is written so the file exists on disk.
func NewStore(backend Backend, owners, admins []string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		backend: backend,
		owners:  newSet(owners),
		admins:  newSet(admins),
		logger:  logger,
		now:     time.Now,
	}

	doc, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc == nil {
		s.applyLocked(NewDocument())
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	} else {
		s.applyLocked(doc)
	}

	logger.Info("permissions loaded",
		"owners", len(s.owners),
		"admins", len(s.admins),
		"moderators", len(s.moderators),
		"approved_users", len(s.allowedUsers),
		"group_mode", s.groupMode,
	)
	return s, nil
}

// Reload replaces the in-memory state with the persisted document
func (s *Store) Reload() error {
	doc, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("reload permissions: %w", err)
	}
	if doc == nil {
		doc = NewDocument()
	}

	s.mu.Lock()
	s.applyLocked(doc)
	s.mu.Unlock()

	s.logger.Info("permissions reloaded")
	return nil
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) applyLocked(doc *Document) {
	doc.Normalize()

	s.moderators = newSet(doc.Moderators)
	s.groupModerators = make(map[string]set, len(doc.GroupModerators))
	for group, users := range doc.GroupModerators {
		s.groupModerators[group] = newSet(users)
	}
	s.allowedUsers = newSet(doc.AllowedUsers)
	s.allowedGroups = newSet(doc.AllowedGroups)
	s.blockedGroups = newSet(doc.BlockedGroups)
	s.groupMode = doc.GroupMode

	s.pendingGroups = make(map[string]PendingGroup, len(doc.PendingGroups))
	for group, pg := range doc.PendingGroups {
		s.pendingGroups[group] = pg
	}
	s.approvalRefs = make(map[string]string, len(doc.ApprovalRefs))
	for msgID, group := range doc.ApprovalRefs {
		s.approvalRefs[msgID] = group
	}
	s.lastUpdated = doc.LastUpdated
}

// Snapshot returns the current state in persisted form
func (s *Store) Snapshot() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() *Document {
	doc := &Document{
		Moderators:      s.moderators.sorted(),
		GroupModerators: make(map[string][]string, len(s.groupModerators)),
		AllowedUsers:    s.allowedUsers.sorted(),
		AllowedGroups:   s.allowedGroups.sorted(),
		BlockedGroups:   s.blockedGroups.sorted(),
		GroupMode:       s.groupMode,
		PendingGroups:   make(map[string]PendingGroup, len(s.pendingGroups)),
		ApprovalRefs:    make(map[string]string, len(s.approvalRefs)),
		LastUpdated:     s.lastUpdated,
	}
	for group, users := range s.groupModerators {
		doc.GroupModerators[group] = users.sorted()
	}
	for group, pg := range s.pendingGroups {
		doc.PendingGroups[group] = pg
	}
	for msgID, group := range s.approvalRefs {
		doc.ApprovalRefs[msgID] = group
	}
	return doc
}

// persistLocked writes the current state. On failure the in-memory state
// stays authoritative and ErrPersist is returned.
func (s *Store) persistLocked() error {
	s.lastUpdated = s.now().UTC()
	if err := s.backend.Save(s.snapshotLocked()); err != nil {
		s.logger.Error("failed to persist permissions", "error", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.logger.Debug("permissions saved")
	return nil
}

// mutate runs fn and persists under the write lock. fn returning an error
// aborts without persisting.
func (s *Store) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		return err
	}
	return s.persistLocked()
}

// ==================== ROLES ====================

// RoleOf resolves a user's role; groupID may be empty
func (s *Store) RoleOf(userID, groupID string) Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roleOfLocked(userID, groupID)
}

func (s *Store) roleOfLocked(userID, groupID string) Role {
	if userID == "" {
		return RoleUser
	}
	if s.owners.has(userID) {
		return RoleOwner
	}
	if s.admins.has(userID) {
		return RoleAdmin
	}
	if s.moderators.has(userID) {
		return RoleModerator
	}
	if groupID != "" && s.groupModerators[groupID].has(userID) {
		return RoleModerator
	}
	return RoleUser
}

// RoleName is RoleOf rendered as a name
func (s *Store) RoleName(userID, groupID string) string {
	return s.RoleOf(userID, groupID).String()
}

// IsOwner checks the static owner list
func (s *Store) IsOwner(userID string) bool {
	return s.RoleOf(userID, "") == RoleOwner
}

// IsAdmin reports Admin or Owner
func (s *Store) IsAdmin(userID string) bool {
	return s.RoleOf(userID, "").Satisfies(RoleAdmin)
}

// IsModerator reports Moderator or higher, including grants scoped to groupID
func (s *Store) IsModerator(userID, groupID string) bool {
	return s.RoleOf(userID, groupID).Satisfies(RoleModerator)
}

// IsUserApproved checks the global user allow-list
func (s *Store) IsUserApproved(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowedUsers.has(userID)
}

// HasAccess is the admission gate: moderators and above and approved users
// everywhere, everyone else only in allowed groups.
func (s *Store) HasAccess(userID, groupID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.roleOfLocked(userID, groupID).Satisfies(RoleModerator) {
		return true
	}
	if s.allowedUsers.has(userID) {
		return true
	}
	if groupID != "" {
		return s.isGroupAllowedLocked(groupID)
	}
	return false
}

// ==================== MODERATORS ====================

// GrantModerator adds a global moderator. Owner only.
func (s *Store) GrantModerator(actorID, targetID string) error {
	err := s.mutate(func() error {
		if s.roleOfLocked(actorID, "") != RoleOwner {
			return ErrDenied
		}
		if targetID == "" {
			return ErrInvalid
		}
		s.moderators[targetID] = struct{}{}
		return nil
	})
	if Applied(err) {
		s.logger.Info("moderator granted", "target_id", targetID, "actor_id", actorID)
	}
	return err
}

// GrantModeratorSystem adds a global moderator without an actor check, for
// automated flows.
func (s *Store) GrantModeratorSystem(targetID, source string) error {
	err := s.mutate(func() error {
		if targetID == "" {
			return ErrInvalid
		}
		s.moderators[targetID] = struct{}{}
		return nil
	})
	if Applied(err) {
		s.logger.Info("moderator granted", "target_id", targetID, "source", source)
	}
	return err
}

// RevokeModerator removes a global moderator. Owner only.
func (s *Store) RevokeModerator(actorID, targetID string) error {
	err := s.mutate(func() error {
		if s.roleOfLocked(actorID, "") != RoleOwner {
			return ErrDenied
		}
		if targetID == "" {
			return ErrInvalid
		}
		delete(s.moderators, targetID)
		return nil
	})
	if Applied(err) {
		s.logger.Info("moderator revoked", "target_id", targetID, "actor_id", actorID)
	}
	return err
}

// GrantGroupModerator makes targetID a moderator inside groupID only. The
// group must be allowed, the actor must be Admin+ or a moderator of that
// group, and Admin/Owner targets are refused.
func (s *Store) GrantGroupModerator(actorID, targetID, groupID string) error {
	err := s.mutate(func() error {
		if targetID == "" || groupID == "" {
			return ErrInvalid
		}
		if !s.isGroupAllowedLocked(groupID) {
			return ErrInvalid
		}
		if !s.roleOfLocked(actorID, groupID).Satisfies(RoleModerator) {
			return ErrDenied
		}
		if s.roleOfLocked(targetID, "").Satisfies(RoleAdmin) {
			return ErrInvalid
		}
		mods, ok := s.groupModerators[groupID]
		if !ok {
			mods = make(set)
			s.groupModerators[groupID] = mods
		}
		mods[targetID] = struct{}{}
		return nil
	})
	if Applied(err) {
		s.logger.Info("group moderator granted", "target_id", targetID, "group_id", groupID, "actor_id", actorID)
	}
	return err
}

// RevokeGroupModerator removes a group-scoped grant
func (s *Store) RevokeGroupModerator(actorID, targetID, groupID string) error {
	err := s.mutate(func() error {
		if targetID == "" || groupID == "" {
			return ErrInvalid
		}
		if !s.roleOfLocked(actorID, groupID).Satisfies(RoleModerator) {
			return ErrDenied
		}
		mods, ok := s.groupModerators[groupID]
		if !ok {
			return ErrNotFound
		}
		delete(mods, targetID)
		if len(mods) == 0 {
			delete(s.groupModerators, groupID)
		}
		return nil
	})
	if Applied(err) {
		s.logger.Info("group moderator revoked", "target_id", targetID, "group_id", groupID, "actor_id", actorID)
	}
	return err
}

// GroupModerators lists moderators scoped to groupID
func (s *Store) GroupModerators(groupID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupModerators[groupID].sorted()
}

// Moderators lists global moderators
func (s *Store) Moderators() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moderators.sorted()
}

// Admins lists admins and owners, the recipients of approval notifications
func (s *Store) Admins() []string {
	all := make(set, len(s.admins)+len(s.owners))
	for id := range s.admins {
		all[id] = struct{}{}
	}
	for id := range s.owners {
		all[id] = struct{}{}
	}
	return all.sorted()
}

// Owners lists configured owners
func (s *Store) Owners() []string {
	return s.owners.sorted()
}

// ==================== GROUP POLICY ====================

// IsGroupAllowed applies the current mode. An unrecognized mode allows every
// group so a misconfigured file never locks out an existing deployment.
func (s *Store) IsGroupAllowed(groupID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isGroupAllowedLocked(groupID)
}

func (s *Store) isGroupAllowedLocked(groupID string) bool {
	if groupID == "" {
		return false
	}
	switch s.groupMode {
	case ModeWhitelist:
		return s.allowedGroups.has(groupID)
	case ModeBlacklist:
		return !s.blockedGroups.has(groupID)
	default:
		return true
	}
}

func (s *Store) requireAdminLocked(actorID string) error {
	if !s.roleOfLocked(actorID, "").Satisfies(RoleAdmin) {
		return ErrDenied
	}
	return nil
}

// AllowGroup adds groupID to the allowed set, removing it from blocked and
// pending. Admin+.
func (s *Store) AllowGroup(actorID, groupID string) error {
	err := s.mutate(func() error {
		if err := s.requireAdminLocked(actorID); err != nil {
			return err
		}
		if groupID == "" {
			return ErrInvalid
		}
		s.allowedGroups[groupID] = struct{}{}
		delete(s.blockedGroups, groupID)
		delete(s.pendingGroups, groupID)
		return nil
	})
	if Applied(err) {
		s.logger.Info("group allowed", "group_id", groupID, "actor_id", actorID)
	}
	return err
}

// DisallowGroup removes groupID from the allowed set. Admin+.
func (s *Store) DisallowGroup(actorID, groupID string) error {
	err := s.mutate(func() error {
		if err := s.requireAdminLocked(actorID); err != nil {
			return err
		}
		if groupID == "" {
			return ErrInvalid
		}
		delete(s.allowedGroups, groupID)
		return nil
	})
	if Applied(err) {
		s.logger.Info("group disallowed", "group_id", groupID, "actor_id", actorID)
	}
	return err
}

// BlockGroup adds groupID to the blocked set, removing it from allowed and
// pending. Admin+.
func (s *Store) BlockGroup(actorID, groupID string) error {
	err := s.mutate(func() error {
		if err := s.requireAdminLocked(actorID); err != nil {
			return err
		}
		if groupID == "" {
			return ErrInvalid
		}
		s.blockedGroups[groupID] = struct{}{}
		delete(s.allowedGroups, groupID)
		delete(s.pendingGroups, groupID)
		return nil
	})
	if Applied(err) {
		s.logger.Info("group blocked", "group_id", groupID, "actor_id", actorID)
	}
	return err
}

// UnblockGroup removes groupID from the blocked set. Admin+.
func (s *Store) UnblockGroup(actorID, groupID string) error {
	err := s.mutate(func() error {
		if err := s.requireAdminLocked(actorID); err != nil {
			return err
		}
		if groupID == "" {
			return ErrInvalid
		}
		delete(s.blockedGroups, groupID)
		return nil
	})
	if Applied(err) {
		s.logger.Info("group unblocked", "group_id", groupID, "actor_id", actorID)
	}
	return err
}

// SetGroupMode switches between whitelist and blacklist. Owner only. The
// allowed and blocked sets are left untouched.
func (s *Store) SetGroupMode(actorID, mode string) error {
	err := s.mutate(func() error {
		if s.roleOfLocked(actorID, "") != RoleOwner {
			return ErrDenied
		}
		m := GroupMode(mode)
		if !m.Valid() {
			return ErrInvalid
		}
		s.groupMode = m
		return nil
	})
	if Applied(err) {
		s.logger.Info("group mode changed", "mode", mode, "actor_id", actorID)
	}
	return err
}

// ClearGroupSettings empties both group sets and resets the mode to
// whitelist. Owner only.
func (s *Store) ClearGroupSettings(actorID string) error {
	err := s.mutate(func() error {
		if s.roleOfLocked(actorID, "") != RoleOwner {
			return ErrDenied
		}
		s.allowedGroups = make(set)
		s.blockedGroups = make(set)
		s.groupMode = ModeWhitelist
		return nil
	})
	if Applied(err) {
		s.logger.Info("group settings cleared", "actor_id", actorID)
	}
	return err
}

// GroupMode returns the current mode
func (s *Store) GroupMode() GroupMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupMode
}

// AllowedGroups lists allowed groups
func (s *Store) AllowedGroups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowedGroups.sorted()
}

// BlockedGroups lists blocked groups
func (s *Store) BlockedGroups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blockedGroups.sorted()
}

// ==================== USER APPROVAL ====================

// AllowUser approves userID everywhere regardless of group policy. Admin+.
func (s *Store) AllowUser(actorID, userID string) error {
	err := s.mutate(func() error {
		if err := s.requireAdminLocked(actorID); err != nil {
			return err
		}
		if userID == "" {
			return ErrInvalid
		}
		s.allowedUsers[userID] = struct{}{}
		return nil
	})
	if Applied(err) {
		s.logger.Info("user approved", "user_id", userID, "actor_id", actorID)
	}
	return err
}

// DisallowUser revokes a user approval. Admin+.
func (s *Store) DisallowUser(actorID, userID string) error {
	err := s.mutate(func() error {
		if err := s.requireAdminLocked(actorID); err != nil {
			return err
		}
		if userID == "" {
			return ErrInvalid
		}
		delete(s.allowedUsers, userID)
		return nil
	})
	if Applied(err) {
		s.logger.Info("user approval revoked", "user_id", userID, "actor_id", actorID)
	}
	return err
}

// ApprovedUsers lists approved users
func (s *Store) ApprovedUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowedUsers.sorted()
}

// ==================== PENDING GROUPS ====================

// RecordPendingGroup records a group awaiting approval. Groups already
// allowed or blocked are refused with ErrInvalid. Repeated calls keep the
// original FirstSeenAt and only overwrite non-empty name and owner.
func (s *Store) RecordPendingGroup(groupID string, meta PendingGroup) error {
	return s.mutate(func() error {
		if groupID == "" {
			return ErrInvalid
		}
		if s.allowedGroups.has(groupID) || s.blockedGroups.has(groupID) {
			return ErrInvalid
		}
		entry, ok := s.pendingGroups[groupID]
		if meta.Name != "" {
			entry.Name = meta.Name
		}
		if meta.Owner != "" {
			entry.Owner = meta.Owner
		}
		if !ok || entry.FirstSeenAt.IsZero() {
			entry.FirstSeenAt = s.now().UTC()
		}
		s.pendingGroups[groupID] = entry
		return nil
	})
}

// RemovePendingGroup drops a pending record
func (s *Store) RemovePendingGroup(groupID string) error {
	return s.mutate(func() error {
		if _, ok := s.pendingGroups[groupID]; !ok {
			return ErrNotFound
		}
		delete(s.pendingGroups, groupID)
		return nil
	})
}

// PendingGroup looks up one pending record
func (s *Store) PendingGroup(groupID string) (PendingGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pg, ok := s.pendingGroups[groupID]
	return pg, ok
}

// PendingGroups lists pending groups, oldest first
func (s *Store) PendingGroups() []PendingGroupEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PendingGroupEntry, 0, len(s.pendingGroups))
	for id, pg := range s.pendingGroups {
		out = append(out, PendingGroupEntry{GroupID: id, PendingGroup: pg})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeenAt.Equal(out[j].FirstSeenAt) {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].FirstSeenAt.Before(out[j].FirstSeenAt)
	})
	return out
}

// ==================== APPROVAL REFERENCES ====================

// RecordApprovalRef maps a notification message ID to the group it concerns
func (s *Store) RecordApprovalRef(messageID, groupID string) error {
	return s.mutate(func() error {
		if messageID == "" || groupID == "" {
			return ErrInvalid
		}
		s.approvalRefs[messageID] = groupID
		return nil
	})
}

// ResolveApprovalRef returns the group a notification message refers to
func (s *Store) ResolveApprovalRef(messageID string) (string, bool) {
	if messageID == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.approvalRefs[messageID]
	return group, ok
}

// RemoveApprovalRef deletes a used reference
func (s *Store) RemoveApprovalRef(messageID string) error {
	return s.mutate(func() error {
		if _, ok := s.approvalRefs[messageID]; !ok {
			return ErrNotFound
		}
		delete(s.approvalRefs, messageID)
		return nil
	})
}

// ConsumeApprovalRef resolves and deletes a reference in one step, so two
// concurrent replies cannot both use it. The returned error is only ever
// ErrPersist.
func (s *Store) ConsumeApprovalRef(messageID string) (string, bool, error) {
	var group string
	err := s.mutate(func() error {
		g, ok := s.approvalRefs[messageID]
		if !ok || messageID == "" {
			return ErrNotFound
		}
		group = g
		delete(s.approvalRefs, messageID)
		return nil
	})
	if err != nil && !Applied(err) {
		return "", false, nil
	}
	return group, true, err
}

// ==================== STATS ====================

// Stats summarizes the current state
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scoped := 0
	for _, mods := range s.groupModerators {
		scoped += len(mods)
	}
	return Stats{
		Owners:         len(s.owners),
		Admins:         len(s.admins),
		Moderators:     len(s.moderators),
		ApprovedUsers:  len(s.allowedUsers),
		AllowedGroups:  len(s.allowedGroups),
		BlockedGroups:  len(s.blockedGroups),
		PendingGroups:  len(s.pendingGroups),
		GroupMode:      s.groupMode,
		LastUpdated:    s.lastUpdated,
		GroupScopedMod: scoped,
	}
}
