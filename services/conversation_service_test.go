package services

import (
	"sync"
	"testing"
	"time"

	"grantlink/config"
	"grantlink/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("uid-1", "uid-2"), PairKey("uid-2", "uid-1"))
	assert.Equal(t, "uid-1_uid-2", PairKey("uid-2", "uid-1"))
}

func TestGetOrCreateConversationRejectsSelf(t *testing.T) {
	setupTestDB(t)

	_, err := GetOrCreateConversation("uid-1", "uid-1", nil)
	assert.ErrorIs(t, err, ErrInvalidParticipants)

	_, err = GetOrCreateConversation("uid-1", "", nil)
	assert.ErrorIs(t, err, ErrInvalidParticipants)
}

func TestGetOrCreateConversationIdempotent(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "student", "Ana", "Costa")
	b := createTestUser(t, "professor", "Boris", "Meyer")

	first, err := GetOrCreateConversation(a.ID, b.ID, nil)
	require.NoError(t, err)

	// Same pair from the other side resolves to the same conversation.
	second, err := GetOrCreateConversation(b.ID, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	require.NoError(t, config.DB.Model(&models.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateConversationConcurrent(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "student", "Ana", "Costa")
	b := createTestUser(t, "professor", "Boris", "Meyer")

	// Both participants open the brand-new chat at once, from both argument
	// orders. Exactly one row may exist afterwards and everyone must see its
	// id.
	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller, other := a.ID, b.ID
			if i%2 == 1 {
				caller, other = b.ID, a.ID
			}
			ids[i], errs[i] = GetOrCreateConversation(caller, other, nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	require.NoError(t, config.DB.Model(&models.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateConversationRecordsScope(t *testing.T) {
	setupTestDB(t)
	a := createTestUser(t, "student", "Ana", "Costa")
	b := createTestUser(t, "professor", "Boris", "Meyer")

	id, err := GetOrCreateConversation(a.ID, b.ID, &ConversationScope{GrantID: "grant-7"})
	require.NoError(t, err)

	var conv models.Conversation
	require.NoError(t, config.DB.Where("id = ?", id).First(&conv).Error)
	assert.Equal(t, "grant-7", conv.GrantID)

	// A later resolve with a different scope still lands on the same thread;
	// scope is first-create metadata, not part of uniqueness.
	again, err := GetOrCreateConversation(a.ID, b.ID, &ConversationScope{GrantID: "grant-9"})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, config.DB.Where("id = ?", id).First(&conv).Error)
	assert.Equal(t, "grant-7", conv.GrantID)
}

func TestListConversations(t *testing.T) {
	setupTestDB(t)
	student := createTestUser(t, "student", "Ana", "Costa")
	profA := createTestUser(t, "professor", "Boris", "Meyer")
	profB := createTestUser(t, "professor", "Clara", "Nkemelu")

	older := createTestConversation(t, student, profA)
	newer := createTestConversation(t, student, profB)

	base := time.Now().Add(-time.Hour)
	createTestMessage(t, older, profA.ID, "older thread", base)
	createTestMessage(t, newer, profB.ID, "newer thread", base.Add(30*time.Minute))
	createTestMessage(t, newer, profB.ID, "follow-up", base.Add(31*time.Minute))

	olderAt := base
	newerAt := base.Add(31 * time.Minute)
	require.NoError(t, config.DB.Model(older).Updates(map[string]interface{}{
		"last_message_preview": "older thread", "last_message_at": olderAt,
	}).Error)
	require.NoError(t, config.DB.Model(newer).Updates(map[string]interface{}{
		"last_message_preview": "follow-up", "last_message_at": newerAt,
	}).Error)

	entries, err := ListConversations(student.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest activity first.
	assert.Equal(t, newer.ID, entries[0].ID)
	assert.Equal(t, older.ID, entries[1].ID)

	assert.Equal(t, "Clara Nkemelu", entries[0].Name)
	assert.Equal(t, profB.ID, entries[0].OtherUserID)
	assert.Equal(t, "follow-up", entries[0].LastMessage)
	assert.EqualValues(t, 2, entries[0].UnreadCount)
	assert.EqualValues(t, 1, entries[1].UnreadCount)

	// The professor's view counts nothing unread, the student sent nothing.
	fromProf, err := ListConversations(profA.ID)
	require.NoError(t, err)
	require.Len(t, fromProf, 1)
	assert.EqualValues(t, 0, fromProf[0].UnreadCount)
	assert.Equal(t, "Ana Costa", fromProf[0].Name)
}

func TestListConversationsRequiresCaller(t *testing.T) {
	setupTestDB(t)
	_, err := ListConversations("")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
