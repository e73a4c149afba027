package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/state"
	"github.com/danhigham/telequeue/internal/telegram"
	"github.com/danhigham/telequeue/internal/telegram/mocks"
)

var receivedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T) (*Dispatcher, *state.Store, *mocks.Client) {
	t.Helper()
	store := state.New(nil)
	client := &mocks.Client{}
	d := NewDispatcher(store, client, zap.NewNop())
	d.now = func() time.Time { return receivedAt }
	return d, store, client
}

// apply delivers f as the socket of the current session would.
func apply(d *Dispatcher, f telegram.Frame) {
	d.handle(d.store.Generation(), f)
}

func frame(chatID, id int64, text string, out bool) telegram.MessageFrame {
	return telegram.MessageFrame{
		ChatID:    chatID,
		ChatTitle: "Ann",
		Message:   domain.Message{ID: id, ChatID: chatID, Text: text, Out: out, Timestamp: receivedAt},
	}
}

func TestDispatch_Inbound(t *testing.T) {
	d, store, _ := newTestDispatcher(t)
	store.Update(func(s state.State) state.State {
		return s.SetChats([]domain.Chat{{ID: 42, Title: "Ann"}})
	})

	var triggered []int64
	d.OnIncoming(func(chatID int64) { triggered = append(triggered, chatID) })

	apply(d, frame(42, 7, "hi", false))

	st := store.Snapshot()
	msgs := st.MessagesFor(42)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, state.Incoming{ChatID: 42, ChatTitle: "Ann", ReceivedAt: receivedAt}, st.LastIncoming)
	assert.Equal(t, []int64{42}, triggered)

	chat, _ := st.Chat(42)
	assert.Equal(t, 1, chat.UnreadCount)
}

func TestDispatch_OutgoingDoesNotTrigger(t *testing.T) {
	d, store, _ := newTestDispatcher(t)

	triggered := 0
	d.OnIncoming(func(int64) { triggered++ })

	apply(d, frame(42, 8, "sent elsewhere", true))

	st := store.Snapshot()
	assert.Len(t, st.MessagesFor(42), 1)
	assert.Zero(t, st.LastIncoming.ChatID)
	assert.Zero(t, triggered)
}

func TestDispatch_Duplicate(t *testing.T) {
	d, store, _ := newTestDispatcher(t)

	apply(d, frame(42, 7, "hi", false))
	apply(d, frame(42, 7, "hi", false))

	assert.Len(t, store.Snapshot().MessagesFor(42), 1)
}

func TestDispatch_UnknownIgnored(t *testing.T) {
	d, store, _ := newTestDispatcher(t)
	before := store.Snapshot()

	apply(d, telegram.UnknownFrame{Type: "typing"})

	after := store.Snapshot()
	assert.Empty(t, after.Messages)
	assert.Equal(t, before.LastIncoming, after.LastIncoming)
}

func TestOpen_DropsFramesFromEndedSession(t *testing.T) {
	d, store, client := newTestDispatcher(t)

	var deliver func(telegram.Frame)
	client.On("ConnectWebSocket", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { deliver = args.Get(1).(func(telegram.Frame)) }).
		Return(nil).Once()
	client.On("CloseWebSocket").Return(nil).Once()

	require.NoError(t, d.Open(context.Background(), store.Generation()))
	require.NotNil(t, deliver)

	deliver(frame(1, 1, "before logout", false))
	assert.Len(t, store.Snapshot().MessagesFor(1), 1)

	store.Update(state.State.Logout)
	require.NoError(t, d.Close())

	deliver(frame(1, 2, "late", false))
	assert.Empty(t, store.Snapshot().MessagesFor(1))

	client.AssertExpectations(t)
}

func TestOpen_RefusesEndedSession(t *testing.T) {
	d, store, client := newTestDispatcher(t)
	gen := store.Generation()
	store.Update(state.State.Logout)

	err := d.Open(context.Background(), gen)
	assert.ErrorIs(t, err, ErrSessionEnded)
	client.AssertNotCalled(t, "ConnectWebSocket", mock.Anything, mock.Anything)
}

func TestOpen_LogoutDuringDialClosesSocket(t *testing.T) {
	d, store, client := newTestDispatcher(t)
	gen := store.Generation()

	var deliver func(telegram.Frame)
	client.On("ConnectWebSocket", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			deliver = args.Get(1).(func(telegram.Frame))
			store.Update(state.State.Logout)
		}).
		Return(nil).Once()
	client.On("CloseWebSocket").Return(nil).Once()

	err := d.Open(context.Background(), gen)
	assert.ErrorIs(t, err, ErrSessionEnded)

	require.NotNil(t, deliver)
	deliver(frame(9, 1, "from the old session", false))
	st := store.Snapshot()
	assert.Empty(t, st.MessagesFor(9))
	assert.Zero(t, st.LastIncoming.ChatID)
	client.AssertExpectations(t)
}
