package services

import (
	"encoding/json"
	"testing"
	"time"

	"grantlink/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscriber(t *testing.T, userID string) *Subscriber {
	t.Helper()
	sub := &Subscriber{
		Send:     make(chan []byte, 16),
		UserID:   userID,
		LastPing: time.Now(),
	}
	Feed.Subscribe(sub)
	t.Cleanup(func() { Feed.Unsubscribe(sub) })
	return sub
}

func receiveEvent(t *testing.T, sub *Subscriber) FeedEvent {
	t.Helper()
	select {
	case payload := <-sub.Send:
		var event FeedEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(time.Second):
		t.Fatalf("no feed event for %s", sub.UserID)
		return FeedEvent{}
	}
}

func assertNoEvent(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case payload := <-sub.Send:
		t.Fatalf("unexpected feed event for %s: %s", sub.UserID, payload)
	default:
	}
}

func TestFeedDeliversInsertToBothParticipants(t *testing.T) {
	sender := newTestSubscriber(t, "uid-sender")
	receiver := newTestSubscriber(t, "uid-receiver")
	outsider := newTestSubscriber(t, "uid-outsider")

	Feed.PublishMessageInsert(&models.Message{
		ID:         "msg-1",
		SenderID:   "uid-sender",
		ReceiverID: "uid-receiver",
		Content:    "Hello",
	})

	for _, sub := range []*Subscriber{sender, receiver} {
		event := receiveEvent(t, sub)
		assert.Equal(t, "messages", event.Table)
		assert.Equal(t, "insert", event.Type)
		require.NotNil(t, event.Message)
		assert.Equal(t, "msg-1", event.Message.ID)
	}
	assertNoEvent(t, outsider)
}

func TestFeedReadUpdateGoesToSenderOnly(t *testing.T) {
	sender := newTestSubscriber(t, "uid-sender")
	receiver := newTestSubscriber(t, "uid-receiver")

	now := time.Now()
	Feed.PublishMessageRead(&models.Message{
		ID:         "msg-1",
		SenderID:   "uid-sender",
		ReceiverID: "uid-receiver",
		IsRead:     true,
		ReadAt:     &now,
	})

	event := receiveEvent(t, sender)
	assert.Equal(t, "update", event.Type)
	require.NotNil(t, event.Message)
	assert.True(t, event.Message.IsRead)

	assertNoEvent(t, receiver)
}

func TestFeedConversationUpdateReachesBothSides(t *testing.T) {
	one := newTestSubscriber(t, "uid-1")
	two := newTestSubscriber(t, "uid-2")

	Feed.PublishConversationUpdate(&models.Conversation{
		ID:                 "conv-1",
		Participant1ID:     "uid-1",
		Participant2ID:     "uid-2",
		LastMessagePreview: "Hello",
	})

	for _, sub := range []*Subscriber{one, two} {
		event := receiveEvent(t, sub)
		assert.Equal(t, "conversations", event.Table)
		assert.Equal(t, "update", event.Type)
		require.NotNil(t, event.Conversation)
		assert.Equal(t, "Hello", event.Conversation.LastMessagePreview)
	}
}

func TestFeedPreservesConversationOrder(t *testing.T) {
	receiver := newTestSubscriber(t, "uid-receiver")

	for i, content := range []string{"first", "second", "third"} {
		Feed.PublishMessageInsert(&models.Message{
			ID:         string(rune('a' + i)),
			SenderID:   "uid-sender",
			ReceiverID: "uid-receiver",
			Content:    content,
		})
	}

	for _, want := range []string{"first", "second", "third"} {
		event := receiveEvent(t, receiver)
		require.NotNil(t, event.Message)
		assert.Equal(t, want, event.Message.Content)
	}
}

func TestFeedFansOutToEverySocketOfAUser(t *testing.T) {
	tabOne := newTestSubscriber(t, "uid-multi")
	tabTwo := newTestSubscriber(t, "uid-multi")

	Feed.PublishMessageInsert(&models.Message{
		ID:         "msg-1",
		SenderID:   "uid-other",
		ReceiverID: "uid-multi",
	})

	receiveEvent(t, tabOne)
	receiveEvent(t, tabTwo)
}

func TestFeedConnectedTracksSubscriptions(t *testing.T) {
	assert.False(t, Feed.Connected("uid-lifecycle"))

	sub := &Subscriber{Send: make(chan []byte, 1), UserID: "uid-lifecycle", LastPing: time.Now()}
	Feed.Subscribe(sub)
	assert.True(t, Feed.Connected("uid-lifecycle"))

	Feed.Unsubscribe(sub)
	assert.False(t, Feed.Connected("uid-lifecycle"))

	Feed.PublishMessageInsert(&models.Message{SenderID: "x", ReceiverID: "uid-lifecycle"})
	_, open := <-sub.Send
	assert.False(t, open)
}

// End to end: resolve, send, fetch-as-receiver, read receipt back to the
// sender's subscription.
func TestSendFetchReadReceiptScenario(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "student", "Ana", "Costa")
	b := createTestUser(t, "professor", "Boris", "Meyer")

	senderFeed := newTestSubscriber(t, a.ID)

	convID, err := GetOrCreateConversation(a.ID, b.ID, nil)
	require.NoError(t, err)

	sent, err := SendMessage(a.ID, convID, "Hello", "text", nil)
	require.NoError(t, err)
	assert.False(t, sent.IsRead)

	insert := receiveEvent(t, senderFeed)
	assert.Equal(t, "insert", insert.Type)
	require.NotNil(t, insert.Message)
	assert.Equal(t, sent.ID, insert.Message.ID)

	convUpdate := receiveEvent(t, senderFeed)
	assert.Equal(t, "conversations", convUpdate.Table)
	require.NotNil(t, convUpdate.Conversation)
	assert.Equal(t, "Hello", convUpdate.Conversation.LastMessagePreview)

	// B opens the thread; the fetch both returns the message and flips it.
	messages, err := FetchMessages(convID, b.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, sent.ID, messages[0].ID)

	readUpdate := receiveEvent(t, senderFeed)
	assert.Equal(t, "messages", readUpdate.Table)
	assert.Equal(t, "update", readUpdate.Type)
	require.NotNil(t, readUpdate.Message)
	assert.Equal(t, sent.ID, readUpdate.Message.ID)
	assert.True(t, readUpdate.Message.IsRead)
	require.NotNil(t, readUpdate.Message.ReadAt)
}
