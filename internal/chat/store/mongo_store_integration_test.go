package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/pkg/database"
	"estate_chat_service/pkg/logger"
	testtool "estate_chat_service/pkg/test_tool"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	logger.SetNewNop()
	ctx := context.Background()

	container, host, port, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "mongo:latest",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})
	require.NoError(t, err, "failed to start MongoDB container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	mongo, err := database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    fmt.Sprintf("mongodb://%s:%s", host, port),
		RetryCount:    5,
		RetryInterval: 2 * time.Second,
	}, "test_chat_db")
	require.NoError(t, err, "failed to connect to MongoDB")
	t.Cleanup(func() { _ = mongo.Close(ctx) })

	st := NewMongoStore(mongo.Database)
	require.NoError(t, st.EnsureSchema(ctx))
	return st
}

func TestMongoStore_EndToEnd(t *testing.T) {
	st := setupMongoStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	roomID := uuid.NewString()
	m1 := domain.Message{ID: uuid.NewString(), RoomID: roomID, Content: "m1", Type: domain.MessageTypeText, CreatedAt: base, UpdatedAt: base}
	m2 := domain.Message{ID: uuid.NewString(), RoomID: roomID, Content: "m2", Type: domain.MessageTypeText, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)}
	m3 := domain.Message{ID: uuid.NewString(), RoomID: roomID, Content: "m3", Type: domain.MessageTypeText, CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute)}

	// cold start: empty room has no cursor
	last, err := st.GetLastMessageDate(ctx, roomID)
	assert.NoError(t, err)
	assert.Nil(t, last)

	// single save is at-most-once
	saved, err := st.SaveMessage(ctx, m1)
	assert.NoError(t, err)
	assert.True(t, saved)

	dup := m1
	dup.Content = "tampered"
	saved, err = st.SaveMessage(ctx, dup)
	assert.NoError(t, err)
	assert.False(t, saved)

	// batch with an overlap stores only the new ids
	count, err := st.SaveMessages(ctx, []domain.Message{m1, m2, m3})
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	msgs, err := st.FetchMessages(ctx, roomID)
	assert.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].Content)
	assert.Equal(t, "m3", msgs[2].Content)

	// cursor excludes everything at or before it
	cursor := m2.CreatedAt
	delta, err := st.FetchMessagesSince(ctx, roomID, &cursor)
	assert.NoError(t, err)
	require.Len(t, delta, 1)
	assert.Equal(t, "m3", delta[0].Content)

	last, err = st.GetLastMessageDate(ctx, roomID)
	assert.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(m3.CreatedAt))

	// unread lifecycle against the same room document
	assert.NoError(t, st.IncrementUnread(ctx, roomID, "m3", m3.CreatedAt))
	room, err := st.FetchRoom(ctx, roomID)
	assert.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, 1, room.UnreadCount)
	assert.Equal(t, "m3", room.LastPushMessage)

	assert.NoError(t, st.MarkRoomRead(ctx, roomID))
	room, err = st.FetchRoom(ctx, roomID)
	assert.NoError(t, err)
	assert.Equal(t, 0, room.UnreadCount)
	assert.Empty(t, room.LastPushMessage)
	assert.Nil(t, room.LastPushMessageDate)

	// room queries by participant
	room.Participants = []domain.Participant{{UserID: "buyer-1"}, {UserID: "seller-1"}}
	assert.NoError(t, st.UpsertRoom(ctx, *room))

	rooms, err := st.FetchRoomsByUser(ctx, "buyer-1")
	assert.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, roomID, rooms[0].ID)

	rooms, err = st.FetchRoomsByUser(ctx, "nobody")
	assert.NoError(t, err)
	assert.Empty(t, rooms)

	// unknown lookups return nil, not errors
	unknown, err := st.FetchRoom(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, unknown)

	missing, err := st.FetchMessage(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
