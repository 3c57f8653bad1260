package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/chat/store"
	"estate_chat_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockFetcher mock MessageFetcher
type MockFetcher struct {
	mock.Mock
}

// FetchSince mock fetch
func (m *MockFetcher) FetchSince(ctx context.Context, roomID string, since *time.Time) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, since)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestEngine(st store.MessageStore, fetcher MessageFetcher) *Engine {
	logger.SetNewNop()
	return NewEngine(st, fetcher, logger.Log)
}

func syncMsg(roomID string, at time.Time, content string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Content:   content,
		Type:      domain.MessageTypeText,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestSyncRoom_ColdStartFetchesFullHistory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	fetcher := new(MockFetcher)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	remote := []domain.Message{
		syncMsg("room-1", base, "m1"),
		syncMsg("room-1", base.Add(time.Minute), "m2"),
		syncMsg("room-1", base.Add(2*time.Minute), "m3"),
	}
	fetcher.On("FetchSince", ctx, "room-1", (*time.Time)(nil)).Return(remote, nil)

	engine := newTestEngine(st, fetcher)
	msgs, err := engine.SyncRoom(ctx, "room-1")

	assert.NoError(t, err)
	assert.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].Content)
	assert.Equal(t, "m3", msgs[2].Content)
	fetcher.AssertExpectations(t)
}

func TestSyncRoom_CursorIsNewestLocalDate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	fetcher := new(MockFetcher)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	local := syncMsg("room-1", base, "local")
	_, err := st.SaveMessage(ctx, local)
	assert.NoError(t, err)

	delta := syncMsg("room-1", base.Add(time.Minute), "delta")
	fetcher.On("FetchSince", ctx, "room-1", mock.MatchedBy(func(since *time.Time) bool {
		return since != nil && since.Equal(base)
	})).Return([]domain.Message{delta}, nil)

	engine := newTestEngine(st, fetcher)
	msgs, err := engine.SyncRoom(ctx, "room-1")

	assert.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, "local", msgs[0].Content)
	assert.Equal(t, "delta", msgs[1].Content)
	fetcher.AssertExpectations(t)
}

func TestSyncRoom_FetchFailureServesLocalState(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	fetcher := new(MockFetcher)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	local := syncMsg("room-1", base, "cached")
	_, _ = st.SaveMessage(ctx, local)

	fetcher.On("FetchSince", ctx, "room-1", mock.Anything).Return(nil, errors.New("network down"))

	engine := newTestEngine(st, fetcher)
	msgs, err := engine.SyncRoom(ctx, "room-1")

	// the failure is absorbed; the cached thread still renders
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "cached", msgs[0].Content)
}

func TestSyncRoom_OverlappingBatchDedupes(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	fetcher := new(MockFetcher)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	existing := syncMsg("room-1", base, "already-here")
	_, _ = st.SaveMessage(ctx, existing)

	// server returns the overlap plus one genuinely new message
	fresh := syncMsg("room-1", base.Add(time.Minute), "fresh")
	fetcher.On("FetchSince", ctx, "room-1", mock.Anything).Return([]domain.Message{existing, fresh}, nil)

	engine := newTestEngine(st, fetcher)
	msgs, err := engine.SyncRoom(ctx, "room-1")

	assert.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestSyncRoom_CancelledContextSurfaces(t *testing.T) {
	st := store.NewMemoryStore()
	fetcher := new(MockFetcher)

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.On("FetchSince", ctx, "room-1", mock.Anything).Run(func(args mock.Arguments) {
		cancel()
	}).Return(nil, context.Canceled)

	engine := newTestEngine(st, fetcher)
	_, err := engine.SyncRoom(ctx, "room-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubscribe_DeliversThenCloses(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	fetcher := new(MockFetcher)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	fetcher.On("FetchSince", mock.Anything, "room-1", mock.Anything).
		Return([]domain.Message{syncMsg("room-1", base, "m1")}, nil)

	engine := newTestEngine(st, fetcher)
	sub := engine.Subscribe(ctx, "room-1")

	select {
	case msgs := <-sub.Updates():
		assert.Len(t, msgs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	_, open := <-sub.Updates()
	assert.False(t, open)
}

func TestSubscribe_CancelDropsResult(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	fetcher := new(MockFetcher)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher.On("FetchSince", mock.Anything, "room-1", mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return([]domain.Message{syncMsg("room-1", base, "late")}, nil)

	engine := newTestEngine(st, fetcher)
	sub := engine.Subscribe(ctx, "room-1")

	<-started
	sub.Cancel()
	close(release)

	// a cancelled subscription never delivers a stale batch
	msgs, open := <-sub.Updates()
	assert.False(t, open)
	assert.Nil(t, msgs)
}
