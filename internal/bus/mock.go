package bus

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mharkness/go-chatrelay/internal/types"
)

type MockBus struct {
	mock.Mock
}

func (m *MockBus) Publish(ctx context.Context, env types.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockBus) Subscribe(ctx context.Context, handler Handler) error {
	args := m.Called(ctx, handler)
	return args.Error(0)
}

func (m *MockBus) Close() error {
	args := m.Called()
	return args.Error(0)
}
