package repository

import (
	"context"
	"fmt"
	"io"
	"time"

	"estate_chat_service/pkg/database"

	"github.com/google/uuid"
)

// AttachmentRepo stores message attachments and resolves download URLs.
type AttachmentRepo interface {
	Store(ctx context.Context, roomID, filename string, r io.Reader, size int64, contentType string) (string, error)
	URL(ctx context.Context, objectName string) (string, error)
}

type attachmentRepo struct {
	store  *database.MinIOClient
	expiry time.Duration
}

// NewAttachmentRepo create an AttachmentRepo backed by object storage
func NewAttachmentRepo(store *database.MinIOClient) AttachmentRepo {
	return &attachmentRepo{
		store:  store,
		expiry: 24 * time.Hour,
	}
}

// Store upload one attachment under a room-scoped, collision-free key.
func (a *attachmentRepo) Store(ctx context.Context, roomID, filename string, r io.Reader, size int64, contentType string) (string, error) {
	objectName := fmt.Sprintf("%s/%s_%s", roomID, uuid.NewString(), filename)
	if err := a.store.UploadObject(ctx, objectName, r, size, contentType); err != nil {
		return "", err
	}
	return objectName, nil
}

// URL presigned download link, valid for the repo's expiry window.
func (a *attachmentRepo) URL(ctx context.Context, objectName string) (string, error) {
	return a.store.PresignGetURL(ctx, objectName, a.expiry)
}
