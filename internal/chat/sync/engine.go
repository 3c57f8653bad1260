package sync

import (
	"context"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/chat/store"
	"estate_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// MessageFetcher the network collaborator the engine pulls deltas from.
// A nil cursor requests full history; otherwise only messages strictly
// newer than the cursor are returned.
type MessageFetcher interface {
	FetchSince(ctx context.Context, roomID string, since *time.Time) ([]domain.Message, error)
}

// Engine incremental sync: fetch only what is newer than the local store,
// merge through the store, then republish the canonical list. Fetch
// failures never surface to the caller; stale-but-available beats broken.
type Engine struct {
	store   store.MessageStore
	fetcher MessageFetcher
	log     *logger.LogInfo
}

// NewEngine create a sync Engine
func NewEngine(st store.MessageStore, fetcher MessageFetcher, log *logger.LogInfo) *Engine {
	return &Engine{
		store:   st,
		fetcher: fetcher,
		log:     log,
	}
}

// SyncRoom run one sync pass for the room and return the canonical
// message list. The list is always re-read from the store after the
// merge; the just-fetched batch is never trusted as canonical.
func (e *Engine) SyncRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	cursor, err := e.store.GetLastMessageDate(ctx, roomID)
	if err != nil {
		// degraded start: a broken cursor read just widens the fetch
		// window, the store dedupes the overlap
		e.log.Warn("cursor read failed, falling back to full fetch",
			zap.String("roomID", roomID), zap.Error(err))
		cursor = nil
	}

	fetched, err := e.fetcher.FetchSince(ctx, roomID, cursor)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// transient network failure: keep the chat usable on cached state
		e.log.Warn("sync fetch failed, serving local state",
			zap.String("roomID", roomID), zap.Error(err))
		fetched = nil
	}

	if len(fetched) > 0 {
		if _, err := e.store.SaveMessages(ctx, fetched); err != nil {
			e.log.Error("sync merge failed", zap.String("roomID", roomID), zap.Error(err))
		}
	}

	msgs, err := e.store.FetchMessages(ctx, roomID)
	if err != nil {
		// storage read failure: fall back to the batch we still hold
		e.log.Error("canonical re-read failed", zap.String("roomID", roomID), zap.Error(err))
		return fetched, nil
	}
	return msgs, nil
}

// Subscription one in-flight room sync. Cancelling drops the task and
// guarantees no stale result is delivered afterwards.
type Subscription struct {
	roomID  string
	updates chan []domain.Message
	cancel  context.CancelFunc
}

// Updates delivers the synced canonical list, then closes.
func (s *Subscription) Updates() <-chan []domain.Message {
	return s.updates
}

// RoomID the room this subscription syncs
func (s *Subscription) RoomID() string { return s.roomID }

// Cancel abandon the in-flight sync. A response arriving afterwards is
// dropped, never merged into another room's view.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Subscribe start a background sync task for the room. Used for the
// eager post-open sync so the cached list can render immediately.
func (e *Engine) Subscribe(ctx context.Context, roomID string) *Subscription {
	taskCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		roomID:  roomID,
		updates: make(chan []domain.Message, 1),
		cancel:  cancel,
	}

	go func() {
		defer close(sub.updates)

		msgs, err := e.SyncRoom(taskCtx, roomID)
		if err != nil || taskCtx.Err() != nil {
			return
		}
		select {
		case sub.updates <- msgs:
		case <-taskCtx.Done():
		}
	}()

	return sub
}
