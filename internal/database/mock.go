package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockPraatRepository struct {
	mock.Mock
}

func (m *MockPraatRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockPraatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPraatRepository) CreateUserSettings(ctx context.Context, userId int) error {
	args := m.Called(userId)
	return args.Error(0)
}
func (m *MockPraatRepository) AccountExists(ctx context.Context, email, username string) (bool, error) {
	args := m.Called(email, username)
	return args.Bool(0), args.Error(1)
}
func (m *MockPraatRepository) UpdateAccount(ctx context.Context, userId int, update *ProfileUpdate) error {
	args := m.Called(userId, update)
	return args.Error(0)
}
func (m *MockPraatRepository) GetAccountById(ctx context.Context, userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPraatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPraatRepository) GetVerifiedAccountByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPraatRepository) TouchLastLogin(ctx context.Context, userId int) error {
	args := m.Called(userId)
	return args.Error(0)
}
func (m *MockPraatRepository) GetChannel(ctx context.Context, channelId int) (Channel, error) {
	args := m.Called(channelId)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockPraatRepository) ListPublicChannels(ctx context.Context) ([]Channel, error) {
	args := m.Called()
	return args.Get(0).([]Channel), args.Error(1)
}
func (m *MockPraatRepository) ListPrivateChats(ctx context.Context, userId int) ([]Channel, error) {
	args := m.Called(userId)
	return args.Get(0).([]Channel), args.Error(1)
}
func (m *MockPraatRepository) IsParticipant(ctx context.Context, channelId, userId int) (bool, error) {
	args := m.Called(channelId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockPraatRepository) CreatePrivateChat(ctx context.Context, userId1, userId2 int) (Channel, error) {
	args := m.Called(userId1, userId2)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockPraatRepository) GetMessages(ctx context.Context, channelId, limit int) ([]Message, error) {
	args := m.Called(channelId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockPraatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockPraatRepository) ListOnlineUsers(ctx context.Context, since time.Time) ([]OnlineUser, error) {
	args := m.Called(since)
	return args.Get(0).([]OnlineUser), args.Error(1)
}
