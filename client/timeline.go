// Package client implements the view-side merge logic any connected client
// must run to stay consistent: reconciling fetched history, optimistic local
// sends and live feed events into one ordered message list, plus unread
// bookkeeping for the conversation list.
package client

import (
	"fmt"
	"sort"
	"time"

	"grantlink/models"
)

// matchWindow bounds how far apart an optimistic placeholder and its server
// confirmation may be timestamped and still count as the same message.
const matchWindow = 5 * time.Second

// PendingMessage is a locally created message awaiting server confirmation.
// It only has a client-assigned local id; matching against the confirmed row
// goes by (sender, content, timestamp window).
type PendingMessage struct {
	LocalID    string
	SenderID   string
	ReceiverID string
	Content    string
	CreatedAt  time.Time
}

// Entry is one row of the open conversation: exactly one of Confirmed and
// Pending is set. The two shapes are kept apart on purpose, a sentinel prefix
// on a shared id field invites confusing the two.
type Entry struct {
	Confirmed *models.Message
	Pending   *PendingMessage
}

func (e Entry) ID() string {
	if e.Confirmed != nil {
		return e.Confirmed.ID
	}
	return e.Pending.LocalID
}

func (e Entry) SenderID() string {
	if e.Confirmed != nil {
		return e.Confirmed.SenderID
	}
	return e.Pending.SenderID
}

func (e Entry) Content() string {
	if e.Confirmed != nil {
		return e.Confirmed.Content
	}
	return e.Pending.Content
}

func (e Entry) CreatedAt() time.Time {
	if e.Confirmed != nil {
		return e.Confirmed.CreatedAt
	}
	return e.Pending.CreatedAt
}

// Timeline is the authoritative in-memory ordered list for one open
// conversation. Not safe for concurrent use; the owning event loop is
// single-threaded.
type Timeline struct {
	ConversationID string
	SelfID         string
	OtherID        string

	entries   []Entry
	nextLocal int
}

func NewTimeline(conversationID, selfID, otherID string) *Timeline {
	return &Timeline{
		ConversationID: conversationID,
		SelfID:         selfID,
		OtherID:        otherID,
	}
}

// Entries returns the current ordered view.
func (t *Timeline) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// ApplyFetch merges a full server fetch into the view. Pending entries
// survive; confirmed rows are deduplicated by id with the fetched copy
// winning, so a fetch during reconnect also repairs missed updates.
func (t *Timeline) ApplyFetch(messages []models.Message) {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.Pending != nil {
			kept = append(kept, e)
		}
	}
	t.entries = kept
	for i := range messages {
		t.ApplyInsert(&messages[i])
	}
	t.normalize()
}

// AddPending inserts an optimistic entry immediately on user send, before any
// server response. Returns the placeholder so the caller can resolve or fail
// it later.
func (t *Timeline) AddPending(content string) *PendingMessage {
	t.nextLocal++
	pending := &PendingMessage{
		LocalID:    fmt.Sprintf("local-%d", t.nextLocal),
		SenderID:   t.SelfID,
		ReceiverID: t.OtherID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	t.entries = append(t.entries, Entry{Pending: pending})
	t.normalize()
	return pending
}

// ApplyInsert merges a server-confirmed message, arriving either as the
// direct send response or as a feed event — possibly both, in either order.
// A row with a known id replaces in place; otherwise a matching optimistic
// placeholder is swapped for the confirmed row; otherwise it appends.
func (t *Timeline) ApplyInsert(message *models.Message) {
	for i, e := range t.entries {
		if e.Confirmed != nil && e.Confirmed.ID == message.ID {
			t.entries[i].Confirmed = message
			t.normalize()
			return
		}
	}

	for i, e := range t.entries {
		if e.Pending != nil && t.matchesPending(e.Pending, message) {
			t.entries[i] = Entry{Confirmed: message}
			t.normalize()
			return
		}
	}

	t.entries = append(t.entries, Entry{Confirmed: message})
	t.normalize()
}

// ApplyUpdate refreshes a known confirmed row, e.g. a read-flag flip.
// Updates for unknown rows are dropped; the next fetch reconciles them.
func (t *Timeline) ApplyUpdate(message *models.Message) {
	for i, e := range t.entries {
		if e.Confirmed != nil && e.Confirmed.ID == message.ID {
			t.entries[i].Confirmed = message
			return
		}
	}
}

// FailPending removes a placeholder after a failed send and hands back its
// content so the composer can be restored. Fail-visible, never fail-silent.
func (t *Timeline) FailPending(localID string) (string, bool) {
	for i, e := range t.entries {
		if e.Pending != nil && e.Pending.LocalID == localID {
			content := e.Pending.Content
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return content, true
		}
	}
	return "", false
}

func (t *Timeline) matchesPending(pending *PendingMessage, message *models.Message) bool {
	if pending.SenderID != message.SenderID || pending.Content != message.Content {
		return false
	}
	delta := message.CreatedAt.Sub(pending.CreatedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta < matchWindow
}

// normalize restores the two list invariants after any mutation: unique ids
// and non-decreasing creation time (ties broken by id, matching the store's
// ordering).
func (t *Timeline) normalize() {
	seen := make(map[string]bool, len(t.entries))
	deduped := t.entries[:0]
	for _, e := range t.entries {
		if seen[e.ID()] {
			continue
		}
		seen[e.ID()] = true
		deduped = append(deduped, e)
	}
	t.entries = deduped

	sort.SliceStable(t.entries, func(i, j int) bool {
		ti, tj := t.entries[i].CreatedAt(), t.entries[j].CreatedAt()
		if ti.Equal(tj) {
			return t.entries[i].ID() < t.entries[j].ID()
		}
		return ti.Before(tj)
	})
}
