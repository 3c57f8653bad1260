package unread

import (
	"context"
	"sync"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/chat/store"
	"estate_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Reconciler single authority for unread-count correctness. Every trigger
// funnels through the store's MarkRoomRead/IncrementUnread primitives and
// every published count is a store re-read — no in-memory counter exists
// that could diverge from the persisted value.
type Reconciler struct {
	store store.MessageStore
	log   *logger.LogInfo

	mu         sync.Mutex
	activeRoom string

	rooms chan []domain.Room
}

// NewReconciler create a Reconciler
func NewReconciler(st store.MessageStore, log *logger.LogInfo) *Reconciler {
	return &Reconciler{
		store: st,
		log:   log,
		rooms: make(chan []domain.Room, 8),
	}
}

// Rooms republished room snapshots, newest activity first. Emitted after
// every trigger so the room list refreshes without a network round trip.
func (r *Reconciler) Rooms() <-chan []domain.Room {
	return r.rooms
}

// ActiveRoom the room currently being viewed, empty when none.
func (r *Reconciler) ActiveRoom() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeRoom
}

// HandleMessage apply one incoming message. The store's at-most-once save
// decides whether this delivery counts; a duplicate (socket plus an
// overlapping sync window) never increments twice. Returns whether the
// message was newly stored.
func (r *Reconciler) HandleMessage(ctx context.Context, msg domain.Message) (bool, error) {
	saved, err := r.store.SaveMessage(ctx, msg)
	if err != nil {
		return false, err
	}
	if !saved {
		return false, nil
	}

	if r.ActiveRoom() == msg.RoomID {
		// viewer is looking at the thread; reconcile straight to read
		if err := r.store.MarkRoomRead(ctx, msg.RoomID); err != nil {
			r.log.Warn("mark read on active room failed", zap.String("roomID", msg.RoomID), zap.Error(err))
		}
	} else {
		if err := r.store.IncrementUnread(ctx, msg.RoomID, msg.Content, msg.CreatedAt); err != nil {
			r.log.Warn("unread increment failed", zap.String("roomID", msg.RoomID), zap.Error(err))
		}
	}

	r.publish(ctx)
	return true, nil
}

// EnterRoom the user navigated into the thread: mark read exactly once
// per entry, regardless of how many messages arrived while entering.
func (r *Reconciler) EnterRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	r.activeRoom = roomID
	r.mu.Unlock()

	if err := r.store.MarkRoomRead(ctx, roomID); err != nil {
		return err
	}
	r.publish(ctx)
	return nil
}

// ExitRoom the user navigated away: mark read again defensively (covers
// messages that arrived during the viewing session) and broadcast the
// local-state change.
func (r *Reconciler) ExitRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	if r.activeRoom == roomID {
		r.activeRoom = ""
	}
	r.mu.Unlock()

	if err := r.store.MarkRoomRead(ctx, roomID); err != nil {
		return err
	}
	r.publish(ctx)
	return nil
}

// Refresh app returned to foreground: republish every room's canonical
// count from the store (counts may have moved while suspended).
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.publish(ctx)
	return nil
}

func (r *Reconciler) publish(ctx context.Context) {
	rooms, err := r.store.FetchRooms(ctx)
	if err != nil {
		r.log.Warn("room snapshot read failed", zap.Error(err))
		return
	}
	select {
	case r.rooms <- rooms:
	default:
		// slow consumer; drop the stale snapshot, a fresher one follows
		select {
		case <-r.rooms:
		default:
		}
		select {
		case r.rooms <- rooms:
		default:
		}
	}
}
