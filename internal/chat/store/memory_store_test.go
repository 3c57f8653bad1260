package store

import (
	"context"
	"testing"
	"time"

	"estate_chat_service/internal/chat/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func msgAt(roomID string, at time.Time, content string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Content:   content,
		Type:      domain.MessageTypeText,
		Sender:    domain.Sender{UserID: "seller-1", Nickname: "seller"},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestMemoryStore_SaveMessageAtMostOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	msg := msgAt("room-1", base, "first")
	saved, err := s.SaveMessage(ctx, msg)
	assert.NoError(t, err)
	assert.True(t, saved)

	// same id again, altered content: the stored message must not change
	dup := msg
	dup.Content = "tampered"
	saved, err = s.SaveMessage(ctx, dup)
	assert.NoError(t, err)
	assert.False(t, saved)

	msgs, err := s.FetchMessages(ctx, "room-1")
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Content)
}

func TestMemoryStore_FetchMessagesOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	m2 := msgAt("room-1", base.Add(2*time.Minute), "m2")
	m1 := msgAt("room-1", base.Add(time.Minute), "m1")
	m3 := msgAt("room-1", base.Add(3*time.Minute), "m3")

	// arrival out of order
	for _, m := range []domain.Message{m2, m1, m3} {
		_, err := s.SaveMessage(ctx, m)
		assert.NoError(t, err)
	}

	msgs, err := s.FetchMessages(ctx, "room-1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestMemoryStore_EqualTimestampsKeepArrivalOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	a := msgAt("room-1", at, "a")
	b := msgAt("room-1", at, "b")
	_, _ = s.SaveMessage(ctx, a)
	_, _ = s.SaveMessage(ctx, b)

	msgs, err := s.FetchMessages(ctx, "room-1")
	assert.NoError(t, err)
	assert.Equal(t, "a", msgs[0].Content)
	assert.Equal(t, "b", msgs[1].Content)
}

func TestMemoryStore_SaveMessagesCountsOnlyNew(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	m1 := msgAt("room-1", base, "m1")
	_, err := s.SaveMessage(ctx, m1)
	assert.NoError(t, err)

	m2 := msgAt("room-1", base.Add(time.Minute), "m2")
	saved, err := s.SaveMessages(ctx, []domain.Message{m1, m2})
	assert.NoError(t, err)
	assert.Equal(t, 1, saved)

	msgs, _ := s.FetchMessages(ctx, "room-1")
	assert.Len(t, msgs, 2)
}

func TestMemoryStore_GetLastMessageDate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	last, err := s.GetLastMessageDate(ctx, "room-1")
	assert.NoError(t, err)
	assert.Nil(t, last)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	newest := base.Add(5 * time.Minute)
	_, _ = s.SaveMessage(ctx, msgAt("room-1", newest, "new"))
	_, _ = s.SaveMessage(ctx, msgAt("room-1", base, "old"))

	last, err = s.GetLastMessageDate(ctx, "room-1")
	assert.NoError(t, err)
	if assert.NotNil(t, last) {
		assert.True(t, last.Equal(newest))
	}
}

func TestMemoryStore_FetchMessagesSinceStrictlyNewer(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	_, _ = s.SaveMessage(ctx, msgAt("room-1", base, "at-cursor"))
	_, _ = s.SaveMessage(ctx, msgAt("room-1", base.Add(time.Second), "after-cursor"))

	msgs, err := s.FetchMessagesSince(ctx, "room-1", &base)
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "after-cursor", msgs[0].Content)
}

func TestMemoryStore_UnreadLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	assert.NoError(t, s.IncrementUnread(ctx, "room-1", "hi there", at))
	assert.NoError(t, s.IncrementUnread(ctx, "room-1", "still there?", at.Add(time.Minute)))

	room, err := s.FetchRoom(ctx, "room-1")
	assert.NoError(t, err)
	if assert.NotNil(t, room) {
		assert.Equal(t, 2, room.UnreadCount)
		assert.Equal(t, "still there?", room.LastPushMessage)
		assert.NotNil(t, room.LastPushMessageDate)
	}

	// mark read twice; second call must be a harmless no-op
	assert.NoError(t, s.MarkRoomRead(ctx, "room-1"))
	assert.NoError(t, s.MarkRoomRead(ctx, "room-1"))

	room, _ = s.FetchRoom(ctx, "room-1")
	assert.Equal(t, 0, room.UnreadCount)
	assert.Empty(t, room.LastPushMessage)
	assert.Nil(t, room.LastPushMessageDate)
}

func TestMemoryStore_FetchRoomUnknownIsNil(t *testing.T) {
	s := NewMemoryStore()
	room, err := s.FetchRoom(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, room)
}

func TestMemoryStore_FetchRoomsByUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assert.NoError(t, s.UpsertRoom(ctx, domain.Room{
		ID:           "room-1",
		Participants: []domain.Participant{{UserID: "buyer-1"}, {UserID: "seller-1"}},
	}))
	assert.NoError(t, s.UpsertRoom(ctx, domain.Room{
		ID:           "room-2",
		Participants: []domain.Participant{{UserID: "buyer-2"}, {UserID: "seller-1"}},
	}))

	rooms, err := s.FetchRoomsByUser(ctx, "buyer-1")
	assert.NoError(t, err)
	assert.Len(t, rooms, 1)
	assert.Equal(t, "room-1", rooms[0].ID)

	rooms, err = s.FetchRoomsByUser(ctx, "seller-1")
	assert.NoError(t, err)
	assert.Len(t, rooms, 2)
}
