package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/chat/realtime"
	"estate_chat_service/internal/chat/store"
	chatsync "estate_chat_service/internal/chat/sync"
	"estate_chat_service/internal/chat/unread"
	"estate_chat_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type scriptedFetcher struct {
	mu    sync.Mutex
	fn    func(roomID string, since *time.Time) ([]domain.Message, error)
	calls int
}

func (f *scriptedFetcher) FetchSince(_ context.Context, roomID string, since *time.Time) ([]domain.Message, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(roomID, since)
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRealtime struct {
	mu     sync.Mutex
	userID string
	joined []string
	left   []string
	closed bool

	events chan domain.MessageEvent
	errs   chan error
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{
		events: make(chan domain.MessageEvent, 16),
		errs:   make(chan error, 8),
	}
}

func (f *fakeRealtime) Connect(_ context.Context, userID string) error {
	if userID == "" {
		return realtime.ErrMissingIdentity
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userID = userID
	return nil
}

func (f *fakeRealtime) JoinRoom(roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, roomID)
	return nil
}

func (f *fakeRealtime) LeaveRoom(roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, roomID)
	return nil
}

func (f *fakeRealtime) Events() <-chan domain.MessageEvent { return f.events }
func (f *fakeRealtime) Errors() <-chan error               { return f.errs }

func (f *fakeRealtime) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func threadMsg(roomID string, at time.Time, content string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Content:   content,
		Type:      domain.MessageTypeText,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func newTestController(fetcher chatsync.MessageFetcher) (*Controller, *store.MemoryStore, *fakeRealtime) {
	logger.SetNewNop()
	st := store.NewMemoryStore()
	engine := chatsync.NewEngine(st, fetcher, logger.Log)
	reconciler := unread.NewReconciler(st, logger.Log)
	channel := newFakeRealtime()
	c := NewController("buyer-1", st, engine, reconciler, channel, logger.Log)
	return c, st, channel
}

func waitThread(t *testing.T, c *Controller, want int) []domain.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case list := <-c.Updates():
			if len(list) == want {
				return list
			}
		case <-deadline:
			t.Fatalf("thread with %d messages never arrived", want)
			return nil
		}
	}
}

func TestController_ColdStartSync(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	remote := []domain.Message{
		threadMsg("room-1", base, "m1"),
		threadMsg("room-1", base.Add(time.Minute), "m2"),
		threadMsg("room-1", base.Add(2*time.Minute), "m3"),
	}
	fetcher := &scriptedFetcher{fn: func(roomID string, since *time.Time) ([]domain.Message, error) {
		assert.Nil(t, since)
		return remote, nil
	}}

	c, _, _ := newTestController(fetcher)
	assert.NoError(t, c.Start(context.Background()))
	defer c.Shutdown()

	cached, err := c.OpenRoom(context.Background(), "room-1")
	assert.NoError(t, err)
	assert.Empty(t, cached)

	list := waitThread(t, c, 3)
	assert.Equal(t, "m1", list[0].Content)
	assert.Equal(t, "m3", list[2].Content)
}

func TestController_IncrementalSyncUsesCursor(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	m3 := threadMsg("room-1", base.Add(2*time.Minute), "m3")
	fetcher := &scriptedFetcher{fn: func(roomID string, since *time.Time) ([]domain.Message, error) {
		if assert.NotNil(t, since) {
			assert.True(t, since.Equal(base.Add(time.Minute)))
		}
		return []domain.Message{m3}, nil
	}}

	c, st, _ := newTestController(fetcher)
	_, _ = st.SaveMessage(ctx, threadMsg("room-1", base, "m1"))
	_, _ = st.SaveMessage(ctx, threadMsg("room-1", base.Add(time.Minute), "m2"))

	assert.NoError(t, c.Start(ctx))
	defer c.Shutdown()

	cached, err := c.OpenRoom(ctx, "room-1")
	assert.NoError(t, err)
	assert.Len(t, cached, 2)

	list := waitThread(t, c, 3)
	assert.Equal(t, "m3", list[2].Content)
}

func TestController_SocketAndSyncDuplicateStoredOnce(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	m3 := threadMsg("room-1", base, "m3")
	fetcher := &scriptedFetcher{fn: func(roomID string, since *time.Time) ([]domain.Message, error) {
		return []domain.Message{m3}, nil
	}}

	c, st, channel := newTestController(fetcher)
	assert.NoError(t, c.Start(ctx))
	defer c.Shutdown()

	_, err := c.OpenRoom(ctx, "room-1")
	assert.NoError(t, err)
	waitThread(t, c, 1)

	// the same message also arrives over the socket
	channel.events <- domain.MessageEvent{
		MessageID: m3.ID,
		RoomID:    m3.RoomID,
		Content:   m3.Content,
		CreatedAt: m3.CreatedAt,
	}
	time.Sleep(50 * time.Millisecond)

	msgs, err := st.FetchMessages(ctx, "room-1")
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)

	room, _ := st.FetchRoom(ctx, "room-1")
	assert.Equal(t, 0, room.UnreadCount)
}

func TestController_SocketDeliveryRepublishesOpenThread(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	fetcher := &scriptedFetcher{}
	c, _, channel := newTestController(fetcher)
	assert.NoError(t, c.Start(ctx))
	defer c.Shutdown()

	_, err := c.OpenRoom(ctx, "room-1")
	assert.NoError(t, err)

	channel.events <- domain.MessageEvent{
		MessageID: uuid.NewString(),
		RoomID:    "room-1",
		Content:   "can I view it tomorrow?",
		CreatedAt: base,
	}

	list := waitThread(t, c, 1)
	assert.Equal(t, "can I view it tomorrow?", list[0].Content)
}

func TestController_InactiveRoomCountsUnread(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	fetcher := &scriptedFetcher{}
	c, st, channel := newTestController(fetcher)
	assert.NoError(t, c.Start(ctx))
	defer c.Shutdown()

	_, err := c.OpenRoom(ctx, "room-1")
	assert.NoError(t, err)

	channel.events <- domain.MessageEvent{
		MessageID: uuid.NewString(),
		RoomID:    "room-2",
		Content:   "price dropped",
		CreatedAt: base,
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		room, _ := st.FetchRoom(ctx, "room-2")
		if room != nil && room.UnreadCount == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("unread count for the background room never moved")
}

func TestController_CloseRoomTriggersExitSync(t *testing.T) {
	ctx := context.Background()
	fetcher := &scriptedFetcher{}

	c, _, channel := newTestController(fetcher)
	assert.NoError(t, c.Start(ctx))
	defer c.Shutdown()

	_, err := c.OpenRoom(ctx, "room-1")
	assert.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for fetcher.callCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	opened := fetcher.callCount()

	assert.NoError(t, c.CloseRoom(ctx, "room-1"))

	deadline = time.Now().Add(2 * time.Second)
	for fetcher.callCount() <= opened && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Greater(t, fetcher.callCount(), opened)

	channel.mu.Lock()
	defer channel.mu.Unlock()
	assert.Contains(t, channel.left, "room-1")
}

func TestController_StartWithoutIdentityFails(t *testing.T) {
	logger.SetNewNop()
	st := store.NewMemoryStore()
	engine := chatsync.NewEngine(st, &scriptedFetcher{}, logger.Log)
	reconciler := unread.NewReconciler(st, logger.Log)
	c := NewController("", st, engine, reconciler, newFakeRealtime(), logger.Log)

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, realtime.ErrMissingIdentity)
}
