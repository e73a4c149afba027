package chats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/metrics"
	"github.com/danhigham/telequeue/internal/state"
	"github.com/danhigham/telequeue/internal/telegram"
)

const cacheTTL = 10 * time.Minute

// Service runs chat and message operations against the backend and folds
// their results into the store.
type Service struct {
	store    *state.Store
	client   telegram.ChatAPI
	pageSize int
	logger   *zap.Logger

	contacts geche.Geche[string, domain.ResolvedContact]
	info     geche.Geche[int64, domain.Chat]
	newToken func() string
}

// NewService creates the service. The caches it owns are cleaned up until ctx is done.
func NewService(ctx context.Context, store *state.Store, client telegram.ChatAPI, pageSize int, logger *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = telegram.DefaultPageSize
	}
	return &Service{
		store:    store,
		client:   client,
		pageSize: pageSize,
		logger:   logger.Named("chats"),
		contacts: geche.NewMapTTLCache[string, domain.ResolvedContact](ctx, cacheTTL, time.Minute),
		info:     geche.NewMapTTLCache[int64, domain.Chat](ctx, cacheTTL, time.Minute),
		newToken: uuid.NewString,
	}
}

// LoadChats replaces the chat collection with the backend's dialog list.
func (s *Service) LoadChats(ctx context.Context) error {
	gen := s.store.Generation()

	chats, err := s.client.GetChats(ctx)
	if err != nil {
		s.logger.Warn("failed to load chats", zap.Error(err))
		return err
	}

	if !s.store.UpdateIf(gen, func(st state.State) state.State { return st.SetChats(chats) }) {
		s.discarded("load_chats")
		return nil
	}
	s.logger.Debug("chats loaded", zap.Int("count", len(chats)))
	return nil
}

// OpenChat makes chatID the active chat and loads its latest page on first
// open. Messages pushed live before that are kept behind the page.
func (s *Service) OpenChat(ctx context.Context, chatID int64) error {
	gen := s.store.Generation()

	next := s.store.Update(func(st state.State) state.State { return st.SetActiveChat(chatID) })
	if next.HistoryLoaded(chatID) {
		return nil
	}

	msgs, err := s.client.GetMessages(ctx, chatID, s.pageSize)
	if err != nil {
		s.logger.Warn("failed to load messages", zap.Int64("chat_id", chatID), zap.Error(err))
		return err
	}

	if !s.store.UpdateIf(gen, func(st state.State) state.State { return st.LoadHistory(chatID, msgs) }) {
		s.discarded("open_chat")
	}
	return nil
}

// LoadOlder prepends the page before the oldest loaded message and returns
// how many messages were added. Zero means history is exhausted or the
// chat has nothing loaded yet.
func (s *Service) LoadOlder(ctx context.Context, chatID int64) (int, error) {
	gen := s.store.Generation()

	head, ok := s.store.Snapshot().HeadID(chatID)
	if !ok {
		return 0, nil
	}

	older, err := s.client.GetOlderMessages(ctx, chatID, head, s.pageSize)
	if err != nil {
		s.logger.Debug("failed to load older messages", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0, err
	}
	if len(older) == 0 {
		return 0, nil
	}

	added := 0
	applied := s.store.UpdateIf(gen, func(st state.State) state.State {
		current, ok := st.HeadID(chatID)
		if !ok {
			return st
		}
		page := make([]domain.Message, 0, len(older))
		for _, m := range older {
			if m.ID < current {
				page = append(page, m)
			}
		}
		added = len(page)
		return st.PrependMessages(chatID, page)
	})
	if !applied {
		s.discarded("load_older")
		return 0, nil
	}
	return added, nil
}

// SendMessage posts text to chatID and appends the local copy. A send the
// backend acknowledged with an id is stored under that id; otherwise it stays
// pending until its live echo replaces it.
func (s *Service) SendMessage(ctx context.Context, chatID int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return &domain.ValidationError{Field: "text", Message: "must not be empty"}
	}
	gen := s.store.Generation()

	sent, err := s.client.SendMessage(ctx, chatID, text)
	if err != nil {
		s.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return err
	}

	msg := sent.Message
	applied := s.store.UpdateIf(gen, func(st state.State) state.State {
		if sent.ServerID != 0 {
			msg.ID = sent.ServerID
			return st.AppendMessage(msg)
		}
		return st.AddPending(s.newToken(), msg)
	})
	if !applied {
		s.discarded("send_message")
	}
	return nil
}

// ResolveContact maps a user id, phone or username to a chat. Results are
// cached per signed-in user.
func (s *Service) ResolveContact(ctx context.Context, q domain.ContactQuery) (domain.ResolvedContact, error) {
	if err := q.Validate(); err != nil {
		return domain.ResolvedContact{}, err
	}

	key := s.contactKey(q)
	if res, err := s.contacts.Get(key); err == nil {
		return res, nil
	}

	res, err := s.client.ResolveContact(ctx, q)
	if err != nil {
		return domain.ResolvedContact{}, err
	}
	s.contacts.Set(key, res)
	return res, nil
}

// ChatTitle names chatID, asking the backend for chats outside the collection.
func (s *Service) ChatTitle(ctx context.Context, chatID int64) string {
	if chat, ok := s.store.Snapshot().Chat(chatID); ok {
		return chat.Title
	}
	if chat, err := s.info.Get(chatID); err == nil {
		return chat.Title
	}

	chat, err := s.client.GetChatInfo(ctx, chatID)
	if err != nil {
		s.logger.Debug("failed to fetch chat info", zap.Int64("chat_id", chatID), zap.Error(err))
		return fmt.Sprintf("Chat %d", chatID)
	}
	s.info.Set(chatID, chat)
	return chat.Title
}

func (s *Service) contactKey(q domain.ContactQuery) string {
	var owner int64
	if user := s.store.Snapshot().Session.User; user != nil {
		owner = user.ID
	}
	switch {
	case q.UserID != 0:
		return fmt.Sprintf("%d/id/%d", owner, q.UserID)
	case q.Phone != "":
		return fmt.Sprintf("%d/phone/%s", owner, q.Phone)
	default:
		return fmt.Sprintf("%d/username/%s", owner, strings.ToLower(strings.TrimPrefix(q.Username, "@")))
	}
}

func (s *Service) discarded(operation string) {
	metrics.StaleResponsesTotal.WithLabelValues(operation).Inc()
	s.logger.Debug("discarding stale response", zap.String("operation", operation))
}
