package session

import (
	"context"
	"sync"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/chat/store"
	chatsync "estate_chat_service/internal/chat/sync"
	"estate_chat_service/internal/chat/unread"
	"estate_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// RealtimeSource the realtime delivery channel as the controller sees it.
type RealtimeSource interface {
	Connect(ctx context.Context, userID string) error
	JoinRoom(roomID string) error
	LeaveRoom(roomID string) error
	Events() <-chan domain.MessageEvent
	Errors() <-chan error
	Close() error
}

// Controller session-scoped owner of the store, sync engine, reconciler
// and realtime channel. All collaborators are injected; ownership is
// acyclic and teardown is explicit via Shutdown.
type Controller struct {
	userID     string
	store      store.MessageStore
	engine     *chatsync.Engine
	reconciler *unread.Reconciler
	channel    RealtimeSource
	log        *logger.LogInfo

	messages chan []domain.Message
	notices  chan error

	mu        sync.Mutex
	activeSub *chatsync.Subscription
	runCtx    context.Context
	cancel    context.CancelFunc

	wg sync.WaitGroup
}

// NewController create a Controller for one authenticated user session.
func NewController(
	userID string,
	st store.MessageStore,
	engine *chatsync.Engine,
	reconciler *unread.Reconciler,
	channel RealtimeSource,
	log *logger.LogInfo,
) *Controller {
	return &Controller{
		userID:     userID,
		store:      st,
		engine:     engine,
		reconciler: reconciler,
		channel:    channel,
		log:        log,
		messages:   make(chan []domain.Message, 8),
		notices:    make(chan error, 8),
	}
}

// Start connect the realtime channel and begin applying its events.
func (c *Controller) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.runCtx = runCtx
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.channel.Connect(runCtx, c.userID); err != nil {
		cancel()
		return err
	}

	c.wg.Add(2)
	go c.eventLoop(runCtx)
	go c.errorLoop(runCtx)
	return nil
}

// Updates republished message lists for the room currently open. Always
// the canonical store state, re-sorted; never a raw appended batch.
func (c *Controller) Updates() <-chan []domain.Message {
	return c.messages
}

// Rooms republished room snapshots (unread counts, previews).
func (c *Controller) Rooms() <-chan []domain.Room {
	return c.reconciler.Rooms()
}

// Notices user-actionable errors from the realtime channel.
func (c *Controller) Notices() <-chan error {
	return c.notices
}

// OpenRoom enter a thread: mark it read, scope realtime delivery to it,
// return the locally cached list for immediate rendering, and kick off a
// background incremental sync whose result lands on Updates.
func (c *Controller) OpenRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	c.cancelActiveSub()

	if err := c.reconciler.EnterRoom(ctx, roomID); err != nil {
		// storage failure is non-fatal; the thread still opens
		c.log.Warn("enter-room mark read failed", zap.String("roomID", roomID), zap.Error(err))
	}
	if err := c.channel.JoinRoom(roomID); err != nil {
		return nil, err
	}

	cached, err := c.store.FetchMessages(ctx, roomID)
	if err != nil {
		c.log.Warn("cached read failed, starting empty", zap.String("roomID", roomID), zap.Error(err))
		cached = nil
	}

	c.mu.Lock()
	runCtx := c.runCtx
	if runCtx == nil {
		runCtx = ctx
	}
	sub := c.engine.Subscribe(runCtx, roomID)
	c.activeSub = sub
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for list := range sub.Updates() {
			c.pushThread(list)
		}
	}()

	return cached, nil
}

// CloseRoom leave a thread: defensive mark-read, then a background
// exit sync to capture anything missed while the socket was the only
// channel, followed by a room-list refresh.
func (c *Controller) CloseRoom(ctx context.Context, roomID string) error {
	c.cancelActiveSub()

	if err := c.channel.LeaveRoom(roomID); err != nil {
		c.log.Warn("leave room failed", zap.String("roomID", roomID), zap.Error(err))
	}
	if err := c.reconciler.ExitRoom(ctx, roomID); err != nil {
		c.log.Warn("exit-room mark read failed", zap.String("roomID", roomID), zap.Error(err))
	}

	c.mu.Lock()
	runCtx := c.runCtx
	c.mu.Unlock()
	if runCtx == nil {
		runCtx = ctx
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.engine.SyncRoom(runCtx, roomID); err != nil {
			return
		}
		if err := c.reconciler.Refresh(runCtx); err != nil {
			c.log.Warn("post-exit refresh failed", zap.Error(err))
		}
	}()
	return nil
}

// Foreground app became active again: republish canonical unread counts
// and opportunistically reconnect the realtime channel.
func (c *Controller) Foreground(ctx context.Context) error {
	c.mu.Lock()
	runCtx := c.runCtx
	c.mu.Unlock()
	if runCtx != nil {
		if err := c.channel.Connect(runCtx, c.userID); err != nil {
			c.notify(err)
		}
	}
	return c.reconciler.Refresh(ctx)
}

// Shutdown tear the session down: cancel in-flight syncs, close the
// channel, wait for the loops to drain.
func (c *Controller) Shutdown() {
	c.cancelActiveSub()

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := c.channel.Close(); err != nil {
		c.log.Warn("channel close failed", zap.Error(err))
	}
	c.wg.Wait()
}

func (c *Controller) cancelActiveSub() {
	c.mu.Lock()
	sub := c.activeSub
	c.activeSub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

func (c *Controller) eventLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case ev := <-c.channel.Events():
			c.apply(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) errorLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case err := <-c.channel.Errors():
			c.notify(err)
		case <-ctx.Done():
			return
		}
	}
}

// apply write one socket delivery through the store, then republish the
// open thread from canonical state when it was affected.
func (c *Controller) apply(ctx context.Context, ev domain.MessageEvent) {
	msg := ev.Message()
	saved, err := c.reconciler.HandleMessage(ctx, msg)
	if err != nil {
		c.log.Warn("incoming message apply failed", zap.String("messageID", msg.ID), zap.Error(err))
		return
	}
	if !saved {
		return
	}

	if c.reconciler.ActiveRoom() == msg.RoomID {
		list, err := c.store.FetchMessages(ctx, msg.RoomID)
		if err != nil {
			c.log.Warn("thread re-read failed", zap.String("roomID", msg.RoomID), zap.Error(err))
			return
		}
		c.pushThread(list)
	}
}

func (c *Controller) pushThread(list []domain.Message) {
	select {
	case c.messages <- list:
	default:
		// latest wins; a stale snapshot is worthless to the view
		select {
		case <-c.messages:
		default:
		}
		select {
		case c.messages <- list:
		default:
		}
	}
}

func (c *Controller) notify(err error) {
	select {
	case c.notices <- err:
	default:
	}
}
