package app

import (
	"context"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/internal/chat/repository"

	"github.com/stretchr/testify/mock"
)

// MockEventPublisher mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// Publish mock publish
func (m *MockEventPublisher) Publish(ctx context.Context, channel string, event domain.MessageEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

// MockArchiver mock MessageArchiver
type MockArchiver struct {
	mock.Mock
}

// Archive mock archive
func (m *MockArchiver) Archive(ctx context.Context, msg domain.Message) {
	m.Called(ctx, msg)
}

// MockPushEnqueuer mock PushEnqueuer
type MockPushEnqueuer struct {
	mock.Mock
}

// Enqueue mock enqueue
func (m *MockPushEnqueuer) Enqueue(job repository.PushJob) error {
	args := m.Called(job)
	return args.Error(0)
}

// MockSenderDirectory mock SenderDirectory
type MockSenderDirectory struct {
	mock.Mock
}

// SenderSnapshot mock snapshot lookup
func (m *MockSenderDirectory) SenderSnapshot(ctx context.Context, userID string) (domain.Sender, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Sender), args.Error(1)
}
