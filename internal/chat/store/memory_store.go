package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"estate_chat_service/internal/chat/domain"
)

type storedMessage struct {
	msg domain.Message
	seq int // arrival order, breaks created_at ties
}

// MemoryStore in-memory MessageStore. Backs the device session's local
// cache and the test fakes. Whole-store locking; operations are short.
type MemoryStore struct {
	mu       sync.Mutex
	seq      int
	messages map[string]storedMessage
	rooms    map[string]domain.Room
	lastAt   map[string]time.Time // newest created_at per room
}

// NewMemoryStore create an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]storedMessage),
		rooms:    make(map[string]domain.Room),
		lastAt:   make(map[string]time.Time),
	}
}

// SaveMessage see MessageStore.
func (s *MemoryStore) SaveMessage(_ context.Context, msg domain.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(msg), nil
}

// SaveMessages see MessageStore. The single lock makes the batch atomic.
func (s *MemoryStore) SaveMessages(_ context.Context, msgs []domain.Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	for _, msg := range msgs {
		if s.saveLocked(msg) {
			saved++
		}
	}
	return saved, nil
}

func (s *MemoryStore) saveLocked(msg domain.Message) bool {
	if _, ok := s.messages[msg.ID]; ok {
		return false
	}
	s.seq++
	s.messages[msg.ID] = storedMessage{msg: msg, seq: s.seq}

	room, ok := s.rooms[msg.RoomID]
	if !ok {
		room = domain.Room{ID: msg.RoomID, CreatedAt: msg.CreatedAt}
	}
	if msg.CreatedAt.After(s.lastAt[msg.RoomID]) || room.LastMessageID == "" {
		room.LastMessageID = msg.ID
		room.UpdatedAt = msg.CreatedAt
		s.lastAt[msg.RoomID] = msg.CreatedAt
	}
	s.rooms[msg.RoomID] = room
	return true
}

// FetchMessages see MessageStore.
func (s *MemoryStore) FetchMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	return s.FetchMessagesSince(ctx, roomID, nil)
}

// FetchMessagesSince see ServerStore.
func (s *MemoryStore) FetchMessagesSince(_ context.Context, roomID string, since *time.Time) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]storedMessage, 0)
	for _, sm := range s.messages {
		if sm.msg.RoomID != roomID {
			continue
		}
		if since != nil && !sm.msg.CreatedAt.After(*since) {
			continue
		}
		stored = append(stored, sm)
	}
	sort.Slice(stored, func(i, j int) bool {
		if stored[i].msg.CreatedAt.Equal(stored[j].msg.CreatedAt) {
			return stored[i].seq < stored[j].seq
		}
		return stored[i].msg.CreatedAt.Before(stored[j].msg.CreatedAt)
	})

	msgs := make([]domain.Message, 0, len(stored))
	for _, sm := range stored {
		msgs = append(msgs, sm.msg)
	}
	return msgs, nil
}

// FetchMessage see ServerStore.
func (s *MemoryStore) FetchMessage(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sm, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	msg := sm.msg
	return &msg, nil
}

// GetLastMessageDate see MessageStore.
func (s *MemoryStore) GetLastMessageDate(_ context.Context, roomID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.lastAt[roomID]
	if !ok {
		return nil, nil
	}
	last := at
	return &last, nil
}

// MarkRoomRead see MessageStore.
func (s *MemoryStore) MarkRoomRead(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		room = domain.Room{ID: roomID, CreatedAt: time.Now().UTC()}
	}
	room.UnreadCount = 0
	room.LastPushMessage = ""
	room.LastPushMessageDate = nil
	s.rooms[roomID] = room
	return nil
}

// IncrementUnread see MessageStore.
func (s *MemoryStore) IncrementUnread(_ context.Context, roomID, preview string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		room = domain.Room{ID: roomID, CreatedAt: at}
	}
	room.UnreadCount++
	room.LastPushMessage = preview
	pushAt := at
	room.LastPushMessageDate = &pushAt
	if at.After(room.UpdatedAt) {
		room.UpdatedAt = at
	}
	s.rooms[roomID] = room
	return nil
}

// FetchRoom see MessageStore.
func (s *MemoryStore) FetchRoom(_ context.Context, roomID string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

// FetchRooms see MessageStore.
func (s *MemoryStore) FetchRooms(_ context.Context) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})
	return rooms, nil
}

// FetchRoomsByUser see ServerStore.
func (s *MemoryStore) FetchRoomsByUser(ctx context.Context, userID string) ([]domain.Room, error) {
	rooms, err := s.FetchRooms(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]domain.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.HasParticipant(userID) {
			filtered = append(filtered, room)
		}
	}
	return filtered, nil
}

// UpsertRoom see MessageStore.
func (s *MemoryStore) UpsertRoom(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[room.ID] = room
	return nil
}
