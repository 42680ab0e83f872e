package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/pushgate/internal/domain/models"
)

// MockMetrics is a mock implementation of service.Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordSend(env models.Environment, outcome string, duration time.Duration) {
	m.Called(env, outcome, duration)
}

func (m *MockMetrics) RecordCredentialRefresh(success bool) {
	m.Called(success)
}

func (m *MockMetrics) RecordRegistryOp(op, result string) {
	m.Called(op, result)
}

func (m *MockMetrics) RecordBroadcastRecipient(success bool) {
	m.Called(success)
}
