package state

import (
	"slices"
	"time"

	"github.com/danhigham/telequeue/internal/domain"
)

// echoWindow bounds how far apart a pending send and its server echo may be.
const echoWindow = 2 * time.Minute

// Session is the authentication part of the application state.
type Session struct {
	Config        *domain.APIConfig
	Step          domain.AuthStep
	PhoneNumber   string
	PhoneCodeHash string
	User          *domain.UserProfile
	Error         string
}

// Incoming marks the most recent inbound live message.
type Incoming struct {
	ChatID     int64
	ChatTitle  string
	ReceivedAt time.Time
}

// PendingSend is an optimistic outgoing message awaiting its server copy.
type PendingSend struct {
	ChatID int64
	Text   string
	SentAt time.Time
}

// State is an immutable snapshot of everything the client knows.
//
// Transitions never modify the receiver: they return a new State that may
// share unmodified slices and maps with the old one. Readers must treat all
// slices and maps reachable from a State as read-only.
type State struct {
	Session      Session
	Chats        []domain.Chat
	Messages     map[int64][]domain.Message
	Pending      map[string]PendingSend
	Queue        []int64
	ActiveChat   int64
	LastIncoming Incoming

	// History holds the chats whose latest page has been fetched. Chats
	// that only received live messages are not in it.
	History map[int64]struct{}

	// Generation is bumped on logout so that late responses started under
	// an earlier session can be recognized and dropped.
	Generation uint64
}

// Initial returns the logged-out state.
func Initial() State {
	return State{
		Session:  Session{Step: domain.AuthStepPhone},
		Messages: map[int64][]domain.Message{},
		Pending:  map[string]PendingSend{},
		History:  map[int64]struct{}{},
	}
}

func (s State) WithConfig(cfg domain.APIConfig) State {
	s.Session.Config = &cfg
	return s
}

func (s State) WithError(msg string) State {
	s.Session.Error = msg
	return s
}

func (s State) ClearError() State {
	s.Session.Error = ""
	return s
}

// CodeSent moves the flow to the code step.
func (s State) CodeSent(phone, hash string) State {
	s.Session.PhoneNumber = phone
	s.Session.PhoneCodeHash = hash
	s.Session.Step = domain.AuthStepCode
	s.Session.Error = ""
	return s
}

// PasswordRequired moves the flow from the code step to the password step.
func (s State) PasswordRequired() State {
	if s.Session.Step != domain.AuthStepCode {
		return s
	}
	s.Session.Step = domain.AuthStepPassword
	return s
}

// Authenticated records the signed-in user. Step and user always change together.
func (s State) Authenticated(user domain.UserProfile) State {
	s.Session.User = &user
	s.Session.Step = domain.AuthStepAuthenticated
	s.Session.Error = ""
	return s
}

// GoBack steps the auth flow back one screen and clears any surfaced error.
func (s State) GoBack() State {
	switch s.Session.Step {
	case domain.AuthStepCode:
		s.Session.Step = domain.AuthStepPhone
	case domain.AuthStepPassword:
		s.Session.Step = domain.AuthStepCode
	}
	s.Session.Error = ""
	return s
}

// Logout resets everything and starts a new generation.
func (s State) Logout() State {
	next := Initial()
	next.Generation = s.Generation + 1
	return next
}

// SetChats replaces the chat collection. Duplicate ids keep their first record.
func (s State) SetChats(chats []domain.Chat) State {
	seen := make(map[int64]struct{}, len(chats))
	next := make([]domain.Chat, 0, len(chats))
	for _, c := range chats {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		next = append(next, c)
	}
	s.Chats = next
	return s
}

// SetActiveChat selects a chat and clears its unread counter.
func (s State) SetActiveChat(chatID int64) State {
	s.ActiveChat = chatID
	if i := s.chatIndex(chatID); i >= 0 && s.Chats[i].UnreadCount != 0 {
		s.Chats = slices.Clone(s.Chats)
		s.Chats[i].UnreadCount = 0
	}
	return s
}

// SetMessages replaces a chat's message sequence wholesale.
func (s State) SetMessages(chatID int64, msgs []domain.Message) State {
	s.Messages = cloneMessages(s.Messages)
	s.Messages[chatID] = uniqueMessages(nil, msgs)

	// Optimistic entries of this chat were replaced by the server's copy.
	if s.hasPendingFor(chatID) {
		pending := make(map[string]PendingSend, len(s.Pending))
		for token, p := range s.Pending {
			if p.ChatID != chatID {
				pending[token] = p
			}
		}
		s.Pending = pending
	}
	s.History = withHistory(s.History, chatID)
	return s
}

// LoadHistory installs the latest page of a chat fetched on first open.
// Messages received live before the fetch that are newer than the page stay
// at the tail. A pending send the page already contains is confirmed by it.
func (s State) LoadHistory(chatID int64, page []domain.Message) State {
	existing := s.Messages[chatID]
	next := uniqueMessages(nil, page)
	var newest int64
	if n := len(next); n > 0 {
		newest = next[n-1].ID
	}

	for _, m := range existing {
		if m.Pending() {
			if echoedIn(next, m) {
				s.Pending = withoutPending(s.Pending, m.LocalRef)
				continue
			}
		} else if m.ID <= newest || containsID(next, m.ID) {
			continue
		}
		next = append(next, m)
	}

	s.Messages = cloneMessages(s.Messages)
	s.Messages[chatID] = next
	s.History = withHistory(s.History, chatID)
	return s
}

// HistoryLoaded reports whether the latest page of chatID has been fetched.
func (s State) HistoryLoaded(chatID int64) bool {
	_, ok := s.History[chatID]
	return ok
}

// PrependMessages puts an older page in front of the current sequence.
// The caller guarantees the page is strictly older than the current head.
func (s State) PrependMessages(chatID int64, older []domain.Message) State {
	existing := s.Messages[chatID]
	page := uniqueMessages(existing, older)
	if len(page) == 0 {
		return s
	}
	next := make([]domain.Message, 0, len(page)+len(existing))
	next = append(next, page...)
	next = append(next, existing...)

	s.Messages = cloneMessages(s.Messages)
	s.Messages[chatID] = next
	return s
}

// AppendMessage adds a message at the tail of its chat. A message whose id
// is already present is a duplicate and leaves the state unchanged.
func (s State) AppendMessage(msg domain.Message) State {
	existing := s.Messages[msg.ChatID]
	if containsID(existing, msg.ID) {
		return s
	}
	next := make([]domain.Message, 0, len(existing)+1)
	next = append(next, existing...)
	next = append(next, msg)

	s.Messages = cloneMessages(s.Messages)
	s.Messages[msg.ChatID] = next
	return s.touchChat(msg)
}

// AddPending appends an optimistic send and indexes it by its correlation token.
func (s State) AddPending(token string, msg domain.Message) State {
	msg.LocalRef = token
	if containsID(s.Messages[msg.ChatID], msg.ID) {
		return s
	}
	s = s.AppendMessage(msg)

	pending := make(map[string]PendingSend, len(s.Pending)+1)
	for k, v := range s.Pending {
		pending[k] = v
	}
	pending[token] = PendingSend{ChatID: msg.ChatID, Text: msg.Text, SentAt: msg.Timestamp}
	s.Pending = pending
	return s
}

// ReceiveMessage folds a pushed message into the store. An outgoing echo
// that matches a pending send replaces it in place; everything else is
// appended idempotently.
func (s State) ReceiveMessage(msg domain.Message) State {
	if containsID(s.Messages[msg.ChatID], msg.ID) {
		return s
	}
	if msg.Out {
		if token, ok := s.matchPending(msg); ok {
			return s.confirmPending(token, msg)
		}
	}
	return s.AppendMessage(msg)
}

// RecordIncoming remembers the latest inbound live message.
func (s State) RecordIncoming(chatID int64, title string, at time.Time) State {
	s.LastIncoming = Incoming{ChatID: chatID, ChatTitle: title, ReceivedAt: at}
	return s
}

// ReconcileQueue merges a server queue snapshot into the local copy.
func (s State) ReconcileQueue(server []int64) State {
	s.Queue = ReconcileQueue(s.Queue, server)
	return s
}

// ReplaceQueue takes the server snapshot as is, used after a queue action.
func (s State) ReplaceQueue(queue []int64) State {
	s.Queue = slices.Clone(queue)
	return s
}

// ReconcileQueue keeps local ids still present on the server in their local
// order and appends ids the server added, in server order.
func ReconcileQueue(local, server []int64) []int64 {
	onServer := make(map[int64]struct{}, len(server))
	for _, id := range server {
		onServer[id] = struct{}{}
	}
	kept := make(map[int64]struct{}, len(local))
	out := make([]int64, 0, len(server))
	for _, id := range local {
		if _, ok := onServer[id]; !ok {
			continue
		}
		if _, dup := kept[id]; dup {
			continue
		}
		kept[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range server {
		if _, ok := kept[id]; ok {
			continue
		}
		kept[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Chat looks up a chat record by id.
func (s State) Chat(chatID int64) (domain.Chat, bool) {
	if i := s.chatIndex(chatID); i >= 0 {
		return s.Chats[i], true
	}
	return domain.Chat{}, false
}

// MessagesFor returns a copy of a chat's message sequence.
func (s State) MessagesFor(chatID int64) []domain.Message {
	return slices.Clone(s.Messages[chatID])
}

// HeadID returns the id of the oldest loaded message, the backward pagination cursor.
func (s State) HeadID(chatID int64) (int64, bool) {
	msgs := s.Messages[chatID]
	if len(msgs) == 0 {
		return 0, false
	}
	return msgs[0].ID, true
}

func (s State) chatIndex(chatID int64) int {
	return slices.IndexFunc(s.Chats, func(c domain.Chat) bool { return c.ID == chatID })
}

// touchChat refreshes the preview of the chat a new message belongs to.
func (s State) touchChat(msg domain.Message) State {
	i := s.chatIndex(msg.ChatID)
	if i < 0 {
		return s
	}
	s.Chats = slices.Clone(s.Chats)
	last := msg
	s.Chats[i].LastMessage = &last
	if !msg.Out && msg.ChatID != s.ActiveChat {
		s.Chats[i].UnreadCount++
	}
	return s
}

func (s State) hasPendingFor(chatID int64) bool {
	for _, p := range s.Pending {
		if p.ChatID == chatID {
			return true
		}
	}
	return false
}

// matchPending finds the oldest pending send the echo can stand for.
func (s State) matchPending(msg domain.Message) (string, bool) {
	var (
		best   string
		bestAt time.Time
	)
	for token, p := range s.Pending {
		if p.ChatID != msg.ChatID || p.Text != msg.Text {
			continue
		}
		d := msg.Timestamp.Sub(p.SentAt)
		if d < 0 {
			d = -d
		}
		if d > echoWindow {
			continue
		}
		if best == "" || p.SentAt.Before(bestAt) {
			best, bestAt = token, p.SentAt
		}
	}
	return best, best != ""
}

func (s State) confirmPending(token string, msg domain.Message) State {
	existing := s.Messages[msg.ChatID]
	idx := slices.IndexFunc(existing, func(m domain.Message) bool { return m.LocalRef == token })

	s.Pending = withoutPending(s.Pending, token)

	if idx < 0 {
		return s.AppendMessage(msg)
	}
	next := slices.Clone(existing)
	confirmed := next[idx]
	confirmed.ID = msg.ID
	confirmed.Timestamp = msg.Timestamp
	confirmed.SenderID = msg.SenderID
	confirmed.LocalRef = ""
	next[idx] = confirmed

	s.Messages = cloneMessages(s.Messages)
	s.Messages[msg.ChatID] = next
	return s
}

// echoedIn reports whether msgs holds the server copy of the pending send p.
func echoedIn(msgs []domain.Message, p domain.Message) bool {
	for _, m := range msgs {
		if !m.Out || m.Text != p.Text {
			continue
		}
		d := m.Timestamp.Sub(p.Timestamp)
		if d < 0 {
			d = -d
		}
		if d <= echoWindow {
			return true
		}
	}
	return false
}

func withoutPending(pending map[string]PendingSend, token string) map[string]PendingSend {
	out := make(map[string]PendingSend, len(pending))
	for k, v := range pending {
		if k != token {
			out[k] = v
		}
	}
	return out
}

func withHistory(history map[int64]struct{}, chatID int64) map[int64]struct{} {
	if _, ok := history[chatID]; ok {
		return history
	}
	out := make(map[int64]struct{}, len(history)+1)
	for k := range history {
		out[k] = struct{}{}
	}
	out[chatID] = struct{}{}
	return out
}

func cloneMessages(m map[int64][]domain.Message) map[int64][]domain.Message {
	out := make(map[int64][]domain.Message, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// uniqueMessages returns msgs without ids already in existing or repeated within msgs.
func uniqueMessages(existing, msgs []domain.Message) []domain.Message {
	seen := make(map[int64]struct{}, len(existing)+len(msgs))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func containsID(msgs []domain.Message, id int64) bool {
	return slices.ContainsFunc(msgs, func(m domain.Message) bool { return m.ID == id })
}
