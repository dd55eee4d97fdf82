package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetConversation(userA, userB int) ([]Message, error) {
	args := m.Called(userA, userB)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) GetLocationMessages(userA, userB, limit int) ([]Message, error) {
	args := m.Called(userA, userB, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) MarkConversationRead(recipientId, counterpartId int) (int, error) {
	args := m.Called(recipientId, counterpartId)
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) UnreadCount(recipientId int) (int, error) {
	args := m.Called(recipientId)
	return args.Int(0), args.Error(1)
}
