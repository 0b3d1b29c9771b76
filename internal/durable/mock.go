package durable

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mharkness/go-chatrelay/internal/types"
)

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Submit(ctx context.Context, env types.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockPipeline) Close() error {
	args := m.Called()
	return args.Error(0)
}
