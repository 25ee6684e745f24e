// Package approval drives the pending-group workflow: admins are notified
// when the bot joins a group and can approve it by replying to the notice.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"convox-bot/internal/chat"
	"convox-bot/internal/permissions"
)

var (
	labeledGroupID = regexp.MustCompile(`(?i)Group ID:\s*(-?\d{10,20})`)
	bareGroupID    = regexp.MustCompile(`(?:^|[^\w-])(-?\d{10,20})\b`)
)

// Source tells how a target group was resolved
type Source string

const (
	SourceNone     Source = ""
	SourceExplicit Source = "explicit"
	SourceRef      Source = "approval_ref"
	SourceReplied  Source = "replied_text"
	SourceCurrent  Source = "current_group"
)

// Result describes a completed approval
type Result struct {
	GroupID    string
	PromotedID string
	// PersistErr is set when a change took effect but was not saved
	PersistErr error
}

// Workflow coordinates pending groups, admin notifications and approvals
type Workflow struct {
	store     *permissions.Store
	sender    *chat.Sender
	transport chat.Transport
	prefix    string
	logger    *slog.Logger
}

// NewWorkflow creates an approval workflow
func NewWorkflow(store *permissions.Store, sender *chat.Sender, prefix string, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:     store,
		sender:    sender,
		transport: sender.Transport(),
		prefix:    prefix,
		logger:    logger,
	}
}

// RefKey builds the approval reference key for a message. Message IDs are
// only unique within a conversation on some platforms.
func RefKey(conversationID, messageID string) string {
	return conversationID + "/" + messageID
}

// HandleBotAdded records the group as pending and notifies every admin
// and owner by direct message.
func (w *Workflow) HandleBotAdded(ctx context.Context, ev *chat.Event) error {
	groupID := ev.ConversationID
	log := w.logger.With("group_id", groupID, "request_id", ev.RequestID)

	meta := permissions.PendingGroup{Owner: ev.SenderID}
	if info, err := w.transport.GroupInfo(ctx, groupID); err != nil {
		log.Warn("failed to fetch group info", "error", err)
	} else {
		meta.Name = info.Name
		if meta.Owner == "" && len(info.AdminIDs) > 0 {
			meta.Owner = info.AdminIDs[0]
		}
	}

	if err := w.store.RecordPendingGroup(groupID, meta); err != nil {
		if errors.Is(err, permissions.ErrInvalid) {
			log.Info("bot added to a group that is already allowed or blocked")
			return nil
		}
		if !permissions.Applied(err) {
			return fmt.Errorf("record pending group %s: %w", groupID, err)
		}
		log.Warn("pending group not saved", "error", err)
	}

	text := w.notification(groupID, meta.Name, ev.SenderID)
	notified := 0
	for _, adminID := range w.store.Admins() {
		msgID, ok := w.sender.Send(ctx, adminID, text)
		if !ok {
			continue
		}
		notified++
		if err := w.store.RecordApprovalRef(RefKey(adminID, msgID), groupID); err != nil && !permissions.Applied(err) {
			log.Warn("failed to record approval ref", "admin_id", adminID, "error", err)
		}
	}

	log.Info("group pending approval", "name", meta.Name, "owner", meta.Owner, "notified", notified)
	return nil
}

func (w *Workflow) notification(groupID, name, addedBy string) string {
	var b strings.Builder
	b.WriteString("📣 The bot was added to a new group\n")
	fmt.Fprintf(&b, "🆔 Group ID: %s\n", groupID)
	if name != "" {
		fmt.Fprintf(&b, "🧭 Name: %s\n", name)
	}
	if addedBy != "" {
		fmt.Fprintf(&b, "👤 Added by: %s\n", addedBy)
	}
	fmt.Fprintf(&b, "⚙️ Quick approval: REPLY to this message with \"%sgroup allow\".\n", w.prefix)
	fmt.Fprintf(&b, "🔧 Or: \"%sgroup allow %s\"", w.prefix, groupID)
	return b.String()
}

// ResolveTarget picks the group an approval command refers to: an explicit
// argument, then the approval reference of the replied message (consumed on
// hit), then an ID parsed from the replied text, then the current group.
func (w *Workflow) ResolveTarget(ev *chat.Event, explicit string) (string, Source) {
	if explicit != "" {
		return explicit, SourceExplicit
	}

	if ev.Replied != nil {
		if ev.Replied.MessageID != "" {
			group, ok, err := w.store.ConsumeApprovalRef(RefKey(ev.ConversationID, ev.Replied.MessageID))
			if err != nil {
				w.logger.Warn("approval ref removal not saved", "error", err)
			}
			if ok {
				return group, SourceRef
			}
		}
		if id := ParseGroupID(ev.Replied.Body); id != "" {
			return id, SourceReplied
		}
	}

	if ev.IsGroup {
		return ev.ConversationID, SourceCurrent
	}
	return "", SourceNone
}

// ParseGroupID extracts a 10-20 digit group identifier from text, preferring
// a "Group ID:" label.
func ParseGroupID(text string) string {
	if m := labeledGroupID.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := bareGroupID.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// Approve allows groupID and promotes the group's first administrator, or
// the owner recorded while pending, to group moderator.
func (w *Workflow) Approve(ctx context.Context, actorID, groupID string) (Result, error) {
	res := Result{GroupID: groupID}
	pending, _ := w.store.PendingGroup(groupID)

	if err := w.store.AllowGroup(actorID, groupID); err != nil {
		if !permissions.Applied(err) {
			return res, err
		}
		res.PersistErr = err
	}

	candidate := w.firstAdmin(ctx, groupID)
	if candidate == "" {
		candidate = pending.Owner
	}
	if candidate == "" || w.store.IsModerator(candidate, groupID) {
		w.logger.Info("group approved", "group_id", groupID, "actor_id", actorID)
		return res, nil
	}

	err := w.store.GrantGroupModerator(actorID, candidate, groupID)
	switch {
	case err == nil:
		res.PromotedID = candidate
	case errors.Is(err, permissions.ErrPersist):
		res.PromotedID = candidate
		res.PersistErr = err
	default:
		w.logger.Debug("owner promotion skipped", "group_id", groupID, "candidate", candidate, "error", err)
	}

	w.logger.Info("group approved", "group_id", groupID, "actor_id", actorID, "promoted", res.PromotedID)
	return res, nil
}

func (w *Workflow) firstAdmin(ctx context.Context, groupID string) string {
	info, err := w.transport.GroupInfo(ctx, groupID)
	if err != nil {
		w.logger.Debug("group info unavailable", "group_id", groupID, "error", err)
		return ""
	}
	self := w.transport.CurrentIdentity()
	for _, id := range info.AdminIDs {
		if id != "" && id != self {
			return id
		}
	}
	return ""
}
