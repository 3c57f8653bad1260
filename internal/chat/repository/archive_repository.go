package repository

import (
	"context"
	"encoding/json"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter the kafka producer surface the archive needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ArchiveRepo streams every stored message to the archive topic for
// downstream analytics. Archiving is best effort and never blocks a send.
type ArchiveRepo struct {
	writer MessageWriter
	log    *logger.LogInfo
}

// NewArchiveRepo create an ArchiveRepo
func NewArchiveRepo(writer MessageWriter, log *logger.LogInfo) *ArchiveRepo {
	return &ArchiveRepo{writer: writer, log: log}
}

// Archive publish one message record keyed by room so a room's history
// stays ordered within a partition.
func (a *ArchiveRepo) Archive(ctx context.Context, msg domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		a.log.Error("archive encode failed", zap.String("messageID", msg.ID), zap.Error(err))
		return
	}
	if err := a.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.RoomID),
		Value: data,
	}); err != nil {
		a.log.Warn("archive write failed", zap.String("messageID", msg.ID), zap.Error(err))
	}
}
