package telegram

import (
	"context"

	"github.com/danhigham/telequeue/internal/domain"
)

// DefaultPageSize is the number of messages requested per history page.
const DefaultPageSize = 100

// SentMessage is the locally synthesized copy of a sent message plus the
// id the backend acknowledged it with, if any.
type SentMessage struct {
	Message  domain.Message
	ServerID int64
}

// AuthAPI covers the sign-in flow and the current-user cache.
type AuthAPI interface {
	Initialize(ctx context.Context, cfg domain.APIConfig) (*domain.UserProfile, error)
	SendCode(ctx context.Context, phone string) (string, error)
	SignIn(ctx context.Context, phone, code string) (*domain.UserProfile, error)
	SignInWithPassword(ctx context.Context, password string) (*domain.UserProfile, error)
	Logout()
}

// ChatAPI covers dialogs, history and sending.
type ChatAPI interface {
	GetChats(ctx context.Context) ([]domain.Chat, error)
	GetChatInfo(ctx context.Context, chatID int64) (domain.Chat, error)
	GetMessages(ctx context.Context, chatID int64, limit int) ([]domain.Message, error)
	GetOlderMessages(ctx context.Context, chatID, beforeID int64, limit int) ([]domain.Message, error)
	SendMessage(ctx context.Context, chatID int64, text string) (SentMessage, error)
	ResolveContact(ctx context.Context, q domain.ContactQuery) (domain.ResolvedContact, error)
}

// QueueAPI covers the triage queue.
type QueueAPI interface {
	GetQueue(ctx context.Context) ([]int64, error)
	QueueAction(ctx context.Context, chatID int64, action domain.QueueAction) ([]int64, error)
}

// LiveAPI owns the single live-update socket.
type LiveAPI interface {
	ConnectWebSocket(ctx context.Context, onFrame func(Frame)) error
	CloseWebSocket() error
}

// Client is the interface for backend operations.
type Client interface {
	AuthAPI
	ChatAPI
	QueueAPI
	LiveAPI
	Health(ctx context.Context) error
}
