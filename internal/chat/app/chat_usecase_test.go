package app

import (
	"context"
	"testing"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/chat/repository"
	"estate_chat_service/internal/chat/store"
	"estate_chat_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func seedRoom(t *testing.T, st store.ServerStore, roomID string, userIDs ...string) {
	t.Helper()
	participants := make([]domain.Participant, 0, len(userIDs))
	for _, id := range userIDs {
		participants = append(participants, domain.Participant{UserID: id, Nickname: id})
	}
	assert.NoError(t, st.UpsertRoom(context.Background(), domain.Room{
		ID:           roomID,
		Participants: participants,
		CreatedAt:    time.Now().UTC(),
	}))
}

func TestChatUseCase_SendMessage(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	st := store.NewMemoryStore()
	seedRoom(t, st, "room-1", "buyer-1", "seller-1")

	pubsub := new(MockEventPublisher)
	archive := new(MockArchiver)
	pushQueue := new(MockPushEnqueuer)
	directory := new(MockSenderDirectory)

	directory.On("SenderSnapshot", ctx, "buyer-1").
		Return(domain.Sender{UserID: "buyer-1", Nickname: "buyer"}, nil)

	// fan-out goes to the other participant and the room channel
	pubsub.On("Publish", ctx, repository.UserChannel("seller-1"), mock.Anything).Return(nil)
	pubsub.On("Publish", ctx, repository.RoomChannel("room-1"), mock.Anything).Return(nil)
	pushQueue.On("Enqueue", mock.MatchedBy(func(job repository.PushJob) bool {
		return job.UserID == "seller-1" && job.RoomID == "room-1"
	})).Return(nil)
	archive.On("Archive", ctx, mock.Anything).Return()

	uc := NewChatUseCase(st, pubsub, archive, pushQueue, nil, directory, logger.Log)
	msg, err := uc.SendMessage(ctx, "buyer-1", "room-1", "is it still available?", nil)

	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, domain.MessageTypeText, msg.Type)
	assert.Equal(t, "buyer-1", msg.Sender.UserID)

	stored, err := st.FetchMessages(ctx, "room-1")
	assert.NoError(t, err)
	assert.Len(t, stored, 1)

	pubsub.AssertExpectations(t)
	pushQueue.AssertExpectations(t)
	archive.AssertExpectations(t)
	directory.AssertExpectations(t)
}

func TestChatUseCase_SendMessageWithFilesIsImage(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	st := store.NewMemoryStore()
	seedRoom(t, st, "room-1", "buyer-1", "seller-1")

	pubsub := new(MockEventPublisher)
	directory := new(MockSenderDirectory)
	directory.On("SenderSnapshot", ctx, "buyer-1").Return(domain.Sender{UserID: "buyer-1"}, nil)
	pubsub.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil)

	uc := NewChatUseCase(st, pubsub, nil, nil, nil, directory, logger.Log)
	msg, err := uc.SendMessage(ctx, "buyer-1", "room-1", "", []string{"room-1/floorplan.png"})

	assert.NoError(t, err)
	assert.Equal(t, domain.MessageTypeImage, msg.Type)
	assert.Equal(t, []string{"room-1/floorplan.png"}, msg.AttachedFiles)
}

func TestChatUseCase_SendMessageRejectsOutsider(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	st := store.NewMemoryStore()
	seedRoom(t, st, "room-1", "buyer-1", "seller-1")

	uc := NewChatUseCase(st, new(MockEventPublisher), nil, nil, nil, new(MockSenderDirectory), logger.Log)

	_, err := uc.SendMessage(ctx, "stranger", "room-1", "hi", nil)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = uc.SendMessage(ctx, "buyer-1", "no-such-room", "hi", nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestChatUseCase_RoomMessagesDeltaCursor(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	st := store.NewMemoryStore()
	seedRoom(t, st, "room-1", "buyer-1", "seller-1")

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	old := domain.Message{ID: uuid.NewString(), RoomID: "room-1", Content: "old", CreatedAt: base, UpdatedAt: base}
	fresh := domain.Message{ID: uuid.NewString(), RoomID: "room-1", Content: "fresh", CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)}
	_, _ = st.SaveMessage(ctx, old)
	_, _ = st.SaveMessage(ctx, fresh)

	uc := NewChatUseCase(st, new(MockEventPublisher), nil, nil, nil, new(MockSenderDirectory), logger.Log)

	// no cursor: full history
	msgs, err := uc.RoomMessages(ctx, "buyer-1", "room-1", "")
	assert.NoError(t, err)
	assert.Len(t, msgs, 2)

	// cursor at the old message: only the strictly newer one
	msgs, err = uc.RoomMessages(ctx, "buyer-1", "room-1", base.Format(time.RFC3339Nano))
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "fresh", msgs[0].Content)

	// a plain RFC3339 cursor parses too
	msgs, err = uc.RoomMessages(ctx, "buyer-1", "room-1", base.Format(time.RFC3339))
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = uc.RoomMessages(ctx, "buyer-1", "room-1", "not-a-date")
	assert.Error(t, err)
}

func TestChatUseCase_MarkReadAndUnreadCounts(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	st := store.NewMemoryStore()
	seedRoom(t, st, "room-1", "buyer-1", "seller-1")
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.NoError(t, st.IncrementUnread(ctx, "room-1", "ping", at))

	uc := NewChatUseCase(st, new(MockEventPublisher), nil, nil, nil, new(MockSenderDirectory), logger.Log)

	counts, err := uc.UnreadCounts(ctx, "buyer-1")
	assert.NoError(t, err)
	assert.Equal(t, 1, counts["room-1"])

	assert.NoError(t, uc.MarkRead(ctx, "buyer-1", "room-1"))

	counts, err = uc.UnreadCounts(ctx, "buyer-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, counts["room-1"])
}

func TestChatUseCase_ListRoomsScopedToUser(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	st := store.NewMemoryStore()
	seedRoom(t, st, "room-1", "buyer-1", "seller-1")
	seedRoom(t, st, "room-2", "buyer-2", "seller-1")

	uc := NewChatUseCase(st, new(MockEventPublisher), nil, nil, nil, new(MockSenderDirectory), logger.Log)

	rooms, err := uc.ListRooms(ctx, "buyer-1")
	assert.NoError(t, err)
	assert.Len(t, rooms, 1)
	assert.Equal(t, "room-1", rooms[0].ID)
}
