package client

import (
	"time"

	"grantlink/models"
)

// InboxEntry is the client-side projection of one conversation list row.
type InboxEntry struct {
	ConversationID string
	OtherUserID    string
	Name           string
	LastMessage    string
	LastMessageAt  time.Time
	UnreadCount    int
}

// Inbox maintains the conversation list: recency order, previews and unread
// counters, adjusted incrementally from feed events between full loads.
// Not safe for concurrent use.
type Inbox struct {
	SelfID string

	// openConversation is exempt from unread increments; its messages are
	// being displayed and marked read by the fetch.
	openConversation string
	entries          []InboxEntry
}

func NewInbox(selfID string) *Inbox {
	return &Inbox{SelfID: selfID}
}

// Load replaces the list with a fresh server load.
func (in *Inbox) Load(entries []InboxEntry) {
	in.entries = make([]InboxEntry, len(entries))
	copy(in.entries, entries)
}

// Entries returns the current ordered list.
func (in *Inbox) Entries() []InboxEntry {
	out := make([]InboxEntry, len(in.entries))
	copy(out, in.entries)
	return out
}

// Open marks a conversation as the displayed one and clears its counter; the
// server-side read marking happens through the accompanying fetch.
func (in *Inbox) Open(conversationID string) {
	in.openConversation = conversationID
	for i := range in.entries {
		if in.entries[i].ConversationID == conversationID {
			in.entries[i].UnreadCount = 0
		}
	}
}

// ApplyMessageInsert bumps the unread counter for inserts addressed to this
// user in a conversation that is not currently on screen. A first message from
// a new contact arrives before its list row exists; the count must not be
// lost, so a placeholder row is seeded for the conversation update to fill in.
func (in *Inbox) ApplyMessageInsert(message *models.Message) {
	if message.ReceiverID != in.SelfID {
		return
	}
	if message.ConversationID == in.openConversation {
		return
	}
	for i := range in.entries {
		if in.entries[i].ConversationID == message.ConversationID {
			in.entries[i].UnreadCount++
			return
		}
	}

	in.entries = append([]InboxEntry{{
		ConversationID: message.ConversationID,
		OtherUserID:    message.SenderID,
		LastMessage:    message.Content,
		LastMessageAt:  message.CreatedAt,
		UnreadCount:    1,
	}}, in.entries...)
}

// ApplyMessageRead walks the counter back down as read updates arrive,
// clamped at zero (events are at-least-once, so over-delivery must not go
// negative).
func (in *Inbox) ApplyMessageRead(message *models.Message) {
	if message.ReceiverID != in.SelfID {
		return
	}
	for i := range in.entries {
		if in.entries[i].ConversationID == message.ConversationID {
			if in.entries[i].UnreadCount > 0 {
				in.entries[i].UnreadCount--
			}
			return
		}
	}
}

// ApplyConversationUpdate refreshes a row's preview and moves it to the top,
// inserting a new row when the conversation was not in the list yet (first
// contact from a new peer).
func (in *Inbox) ApplyConversationUpdate(conversation *models.Conversation, peerName string) {
	otherID := conversation.OtherParticipant(in.SelfID)

	updated := InboxEntry{
		ConversationID: conversation.ID,
		OtherUserID:    otherID,
		Name:           peerName,
		LastMessage:    conversation.LastMessagePreview,
	}
	if conversation.LastMessageAt != nil {
		updated.LastMessageAt = *conversation.LastMessageAt
	}

	for i := range in.entries {
		if in.entries[i].ConversationID == conversation.ID {
			updated.UnreadCount = in.entries[i].UnreadCount
			if peerName == "" {
				updated.Name = in.entries[i].Name
			}
			in.entries = append(in.entries[:i], in.entries[i+1:]...)
			break
		}
	}

	in.entries = append([]InboxEntry{updated}, in.entries...)
}
