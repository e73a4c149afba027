// Package mocks holds testify mocks of the wire client interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/telegram"
)

// Client is a mock of telegram.Client.
type Client struct {
	mock.Mock
}

var _ telegram.Client = (*Client)(nil)

func (m *Client) Initialize(ctx context.Context, cfg domain.APIConfig) (*domain.UserProfile, error) {
	args := m.Called(ctx, cfg)
	user, _ := args.Get(0).(*domain.UserProfile)
	return user, args.Error(1)
}

func (m *Client) SendCode(ctx context.Context, phone string) (string, error) {
	args := m.Called(ctx, phone)
	return args.String(0), args.Error(1)
}

func (m *Client) SignIn(ctx context.Context, phone, code string) (*domain.UserProfile, error) {
	args := m.Called(ctx, phone, code)
	user, _ := args.Get(0).(*domain.UserProfile)
	return user, args.Error(1)
}

func (m *Client) SignInWithPassword(ctx context.Context, password string) (*domain.UserProfile, error) {
	args := m.Called(ctx, password)
	user, _ := args.Get(0).(*domain.UserProfile)
	return user, args.Error(1)
}

func (m *Client) Logout() {
	m.Called()
}

func (m *Client) GetChats(ctx context.Context) ([]domain.Chat, error) {
	args := m.Called(ctx)
	chats, _ := args.Get(0).([]domain.Chat)
	return chats, args.Error(1)
}

func (m *Client) GetChatInfo(ctx context.Context, chatID int64) (domain.Chat, error) {
	args := m.Called(ctx, chatID)
	chat, _ := args.Get(0).(domain.Chat)
	return chat, args.Error(1)
}

func (m *Client) GetMessages(ctx context.Context, chatID int64, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, chatID, limit)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}

func (m *Client) GetOlderMessages(ctx context.Context, chatID, beforeID int64, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, chatID, beforeID, limit)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}

func (m *Client) SendMessage(ctx context.Context, chatID int64, text string) (telegram.SentMessage, error) {
	args := m.Called(ctx, chatID, text)
	sent, _ := args.Get(0).(telegram.SentMessage)
	return sent, args.Error(1)
}

func (m *Client) ResolveContact(ctx context.Context, q domain.ContactQuery) (domain.ResolvedContact, error) {
	args := m.Called(ctx, q)
	resolved, _ := args.Get(0).(domain.ResolvedContact)
	return resolved, args.Error(1)
}

func (m *Client) GetQueue(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	queue, _ := args.Get(0).([]int64)
	return queue, args.Error(1)
}

func (m *Client) QueueAction(ctx context.Context, chatID int64, action domain.QueueAction) ([]int64, error) {
	args := m.Called(ctx, chatID, action)
	queue, _ := args.Get(0).([]int64)
	return queue, args.Error(1)
}

func (m *Client) ConnectWebSocket(ctx context.Context, onFrame func(telegram.Frame)) error {
	args := m.Called(ctx, onFrame)
	return args.Error(0)
}

func (m *Client) CloseWebSocket() error {
	args := m.Called()
	return args.Error(0)
}

func (m *Client) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
