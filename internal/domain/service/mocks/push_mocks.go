package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/pushgate/internal/domain/models"
)

// MockCredentialProvider is a mock implementation of service.CredentialProvider
type MockCredentialProvider struct {
	mock.Mock
}

func (m *MockCredentialProvider) EnsureValid(ctx context.Context) (models.Credential, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Credential), args.Error(1)
}

func (m *MockCredentialProvider) Invalidate() {
	m.Called()
}

// MockPushSender is a mock implementation of service.PushSender
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) Send(ctx context.Context, n models.Notification) (models.SendOutcome, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(models.SendOutcome), args.Error(1)
}
