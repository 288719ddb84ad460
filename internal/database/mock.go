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
func (m *MockChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) ListAccounts() ([]User, error) {
	args := m.Called()
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetRoomByName(name string) (Room, error) {
	args := m.Called(name)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) ListRooms() ([]Room, error) {
	args := m.Called()
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) AddJoinRequest(roomName, email string) error {
	args := m.Called(roomName, email)
	return args.Error(0)
}
func (m *MockChatRepository) ApproveJoinRequest(roomName, email string) error {
	args := m.Called(roomName, email)
	return args.Error(0)
}
func (m *MockChatRepository) IsMember(roomName, email string) (bool, error) {
	args := m.Called(roomName, email)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) DeleteRoom(name string) error {
	args := m.Called(name)
	return args.Error(0)
}
func (m *MockChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetRoomMessages(roomName string) ([]Message, error) {
	args := m.Called(roomName)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) GetPrivateMessages(email, peer string) ([]Message, error) {
	args := m.Called(email, peer)
	return args.Get(0).([]Message), args.Error(1)
}
