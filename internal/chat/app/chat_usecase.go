package app

import (
	"context"
	"errors"
	"io"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/chat/repository"
	"estate_chat_service/internal/chat/store"
	"estate_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRoomNotFound the room id is unknown
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotParticipant the user is not in the room
	ErrNotParticipant = errors.New("not a participant of this room")
)

// SenderDirectory resolves a user id into the profile snapshot frozen
// onto every message they send.
type SenderDirectory interface {
	SenderSnapshot(ctx context.Context, userID string) (domain.Sender, error)
}

// EventPublisher fan-out sink for message events.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event domain.MessageEvent) error
}

// MessageArchiver streams stored messages to the archive topic.
type MessageArchiver interface {
	Archive(ctx context.Context, msg domain.Message)
}

// PushEnqueuer queues push notification jobs for recipients.
type PushEnqueuer interface {
	Enqueue(job repository.PushJob) error
}

// ChatUseCase server-side chat operations: room listing, history with a
// delta cursor, message sending with fan-out, read marking.
type ChatUseCase struct {
	store       store.ServerStore
	pubsub      EventPublisher
	archive     MessageArchiver
	pushQueue   PushEnqueuer
	attachments repository.AttachmentRepo
	directory   SenderDirectory
	log         *logger.LogInfo
}

// NewChatUseCase create a ChatUseCase. archive, pushQueue and attachments
// are optional; a nil collaborator disables that side effect.
func NewChatUseCase(
	st store.ServerStore,
	pubsub EventPublisher,
	archive MessageArchiver,
	pushQueue PushEnqueuer,
	attachments repository.AttachmentRepo,
	directory SenderDirectory,
	log *logger.LogInfo,
) *ChatUseCase {
	return &ChatUseCase{
		store:       st,
		pubsub:      pubsub,
		archive:     archive,
		pushQueue:   pushQueue,
		attachments: attachments,
		directory:   directory,
		log:         log,
	}
}

// ListRooms the rooms the user participates in, most recent first.
func (uc *ChatUseCase) ListRooms(ctx context.Context, userID string) ([]domain.Room, error) {
	return uc.store.FetchRoomsByUser(ctx, userID)
}

// RoomMessages the room's history, full or as a delta. next is an
// RFC3339 timestamp; only messages strictly newer are returned, so a
// client polling with its newest local date never receives duplicates.
func (uc *ChatUseCase) RoomMessages(ctx context.Context, userID, roomID, next string) ([]domain.Message, error) {
	room, err := uc.requireRoom(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}

	var since *time.Time
	if next != "" {
		t, err := parseCursor(next)
		if err != nil {
			return nil, err
		}
		since = &t
	}

	msgs, err := uc.store.FetchMessagesSince(ctx, room.ID, since)
	if err != nil {
		return nil, err
	}
	return uc.resolveAttachments(ctx, msgs), nil
}

// SendMessage persist one message and fan it out: redis pub/sub to every
// other participant and the room channel, a push job per recipient, and
// the archive stream. The stored message is returned for echo.
func (uc *ChatUseCase) SendMessage(ctx context.Context, userID, roomID, content string, files []string) (domain.Message, error) {
	room, err := uc.requireRoom(ctx, userID, roomID)
	if err != nil {
		return domain.Message{}, err
	}

	sender, err := uc.directory.SenderSnapshot(ctx, userID)
	if err != nil {
		return domain.Message{}, err
	}

	now := time.Now().UTC()
	msgType := domain.MessageTypeText
	if len(files) > 0 {
		msgType = domain.MessageTypeImage
	}
	msg := domain.Message{
		ID:            uuid.NewString(),
		RoomID:        room.ID,
		Content:       content,
		Type:          msgType,
		Sender:        sender,
		AttachedFiles: files,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := uc.store.SaveMessage(ctx, msg); err != nil {
		return domain.Message{}, err
	}

	uc.fanOut(ctx, room, msg)
	return msg, nil
}

// MarkRead reset the room's unread state for the calling user.
func (uc *ChatUseCase) MarkRead(ctx context.Context, userID, roomID string) error {
	if _, err := uc.requireRoom(ctx, userID, roomID); err != nil {
		return err
	}
	return uc.store.MarkRoomRead(ctx, roomID)
}

// UnreadCounts unread count per room for the user.
func (uc *ChatUseCase) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	rooms, err := uc.store.FetchRoomsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rooms))
	for _, room := range rooms {
		counts[room.ID] = room.UnreadCount
	}
	return counts, nil
}

// StoreAttachment upload one attachment for the room, returning its
// object name for inclusion in a later send.
func (uc *ChatUseCase) StoreAttachment(ctx context.Context, userID, roomID, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if uc.attachments == nil {
		return "", errors.New("attachments not configured")
	}
	if _, err := uc.requireRoom(ctx, userID, roomID); err != nil {
		return "", err
	}
	return uc.attachments.Store(ctx, roomID, filename, r, size, contentType)
}

func (uc *ChatUseCase) requireRoom(ctx context.Context, userID, roomID string) (*domain.Room, error) {
	room, err := uc.store.FetchRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if !room.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return room, nil
}

func (uc *ChatUseCase) fanOut(ctx context.Context, room *domain.Room, msg domain.Message) {
	event := domain.MessageEvent{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		Content:   msg.Content,
		Type:      msg.Type,
		Sender:    msg.Sender,
		Files:     msg.AttachedFiles,
		CreatedAt: msg.CreatedAt,
	}

	for _, p := range room.Participants {
		if p.UserID == msg.Sender.UserID {
			continue
		}
		if err := uc.pubsub.Publish(ctx, repository.UserChannel(p.UserID), event); err != nil {
			uc.log.Warn("user fan-out failed", zap.String("userID", p.UserID), zap.Error(err))
		}
		if uc.pushQueue != nil {
			job := repository.PushJob{
				UserID:    p.UserID,
				RoomID:    msg.RoomID,
				MessageID: msg.ID,
				Preview:   msg.Content,
				SentAt:    msg.CreatedAt,
			}
			if err := uc.pushQueue.Enqueue(job); err != nil {
				uc.log.Warn("push enqueue failed", zap.String("userID", p.UserID), zap.Error(err))
			}
		}
	}

	if err := uc.pubsub.Publish(ctx, repository.RoomChannel(msg.RoomID), event); err != nil {
		uc.log.Warn("room fan-out failed", zap.String("roomID", msg.RoomID), zap.Error(err))
	}

	if uc.archive != nil {
		uc.archive.Archive(ctx, msg)
	}
}

// resolveAttachments swap stored object names for presigned URLs. A
// resolution failure keeps the object name so the client can retry.
func (uc *ChatUseCase) resolveAttachments(ctx context.Context, msgs []domain.Message) []domain.Message {
	if uc.attachments == nil {
		return msgs
	}
	for i := range msgs {
		for j, name := range msgs[i].AttachedFiles {
			url, err := uc.attachments.URL(ctx, name)
			if err != nil {
				uc.log.Warn("attachment url failed", zap.String("object", name), zap.Error(err))
				continue
			}
			msgs[i].AttachedFiles[j] = url
		}
	}
	return msgs
}

func parseCursor(next string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, next)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, next)
}
