package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"estate_chat_service/internal/member/domain"

	"github.com/stretchr/testify/mock"
)

// MockMemberRepository mock repository.MemberRepository
type MockMemberRepository struct {
	mock.Mock
}

// CreateUser mock CreateUser
func (m *MockMemberRepository) CreateUser(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

// UpdateMemberStatus mock UpdateMemberStatus
func (m *MockMemberRepository) UpdateMemberStatus(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

// UpdateProfile mock UpdateProfile
func (m *MockMemberRepository) UpdateProfile(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

// FindByMember mock FindByMember
func (m *MockMemberRepository) FindByMember(ctx context.Context, memberQuery *domain.MemberQuery) (*domain.Member, error) {
	args := m.Called(ctx, memberQuery)
	if member, ok := args.Get(0).(*domain.Member); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeSessionCache in-memory stand-in for the redis session repository.
type fakeSessionCache struct {
	mu       sync.Mutex
	sessions map[string]domain.MemberSession
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{sessions: make(map[string]domain.MemberSession)}
}

func (c *fakeSessionCache) Set(_ context.Context, key string, value domain.MemberSession, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[key] = value
	return nil
}

func (c *fakeSessionCache) Get(_ context.Context, key string) (domain.MemberSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[key]
	if !ok {
		return domain.MemberSession{}, errors.New("session not found")
	}
	return session, nil
}

func (c *fakeSessionCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, key)
	return nil
}

func (c *fakeSessionCache) GetTTL(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (c *fakeSessionCache) ExtendTTL(_ context.Context, _ string, _ time.Duration) error {
	return nil
}
