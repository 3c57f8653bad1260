package store

import (
	"context"
	"fmt"
	"time"

	"estate_chat_service/internal/chat/domain"
)

// StorageError wraps a persistence-layer failure. Callers treat these as
// non-fatal and fall back to whatever in-memory state they already hold.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

// Unwrap expose the underlying error
func (e *StorageError) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// MessageStore durable, queryable persistence of messages and rooms.
// It is the single source of truth for what the client has already seen;
// the sync engine and the realtime channel write through it and re-read
// the canonical state instead of trusting their own batches.
//
// Implementations serialize concurrent writes to the same room; a sync
// merge racing a socket delivery must not corrupt data.
type MessageStore interface {
	// SaveMessage upserts by message id with at-most-once semantics: an
	// id that is already stored is left untouched and reported as false.
	// A newly stored message also advances the room's last message
	// reference when it is newer than the room's current one.
	SaveMessage(ctx context.Context, msg domain.Message) (bool, error)

	// SaveMessages batch variant of SaveMessage. Atomic with respect to
	// partial failure: either every new message is durably saved or none
	// is. Returns how many messages were newly stored.
	SaveMessages(ctx context.Context, msgs []domain.Message) (int, error)

	// FetchMessages returns the room's messages ascending by created_at
	// (arrival order breaks ties). A room with no local messages yields
	// an empty list, not an error.
	FetchMessages(ctx context.Context, roomID string) ([]domain.Message, error)

	// GetLastMessageDate returns the newest local created_at for the
	// room, or nil when nothing is stored (full sync needed).
	GetLastMessageDate(ctx context.Context, roomID string) (*time.Time, error)

	// MarkRoomRead resets unread_count to zero and clears the push
	// preview. Idempotent; creates the room record when absent.
	MarkRoomRead(ctx context.Context, roomID string) error

	// IncrementUnread adds one unread message to the room and records
	// the push preview. Creates the room record when absent.
	IncrementUnread(ctx context.Context, roomID, preview string, at time.Time) error

	// FetchRoom returns nil without error when the room is unknown.
	FetchRoom(ctx context.Context, roomID string) (*domain.Room, error)

	// FetchRooms returns every known room, most recently updated first.
	FetchRooms(ctx context.Context) ([]domain.Room, error)

	// UpsertRoom stores the room record as-is.
	UpsertRoom(ctx context.Context, room domain.Room) error
}

// ServerStore MessageStore plus the lookups the chat service needs to
// answer the REST surface.
type ServerStore interface {
	MessageStore

	// FetchMessagesSince returns the room's messages strictly newer than
	// since, ascending by created_at. A nil cursor means full history.
	FetchMessagesSince(ctx context.Context, roomID string, since *time.Time) ([]domain.Message, error)

	// FetchMessage returns nil without error when the id is unknown.
	FetchMessage(ctx context.Context, id string) (*domain.Message, error)

	// FetchRoomsByUser returns the rooms the user participates in.
	FetchRoomsByUser(ctx context.Context, userID string) ([]domain.Room, error)
}
