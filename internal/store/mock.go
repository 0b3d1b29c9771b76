package store

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) GetUser(id string) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockRepository) GetGroup(id string) (Group, error) {
	args := m.Called(id)
	return args.Get(0).(Group), args.Error(1)
}

func (m *MockRepository) IsMember(userId, groupId string) bool {
	args := m.Called(userId, groupId)
	return args.Bool(0)
}

func (m *MockRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockRepository) ListMessages(groupId string) ([]Message, error) {
	args := m.Called(groupId)
	return args.Get(0).([]Message), args.Error(1)
}
