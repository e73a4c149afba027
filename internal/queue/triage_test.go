package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/state"
	"github.com/danhigham/telequeue/internal/telegram/mocks"
)

func newTestTriage(t *testing.T, interval time.Duration) (*Triage, *state.Store, *mocks.Client) {
	t.Helper()
	store := state.New(nil)
	store.Update(func(s state.State) state.State { return s.Authenticated(domain.UserProfile{ID: 1}) })
	client := &mocks.Client{}
	return NewTriage(store, client, interval, zap.NewNop()), store, client
}

func TestRefresh_Reconciles(t *testing.T) {
	tr, store, client := newTestTriage(t, time.Minute)
	store.Update(func(s state.State) state.State { return s.ReplaceQueue([]int64{5, 2, 9}) })
	client.On("GetQueue", mock.Anything).Return([]int64{2, 9, 7}, nil).Once()

	require.NoError(t, tr.Refresh(context.Background(), TriggerManual))
	assert.Equal(t, []int64{2, 9, 7}, store.Snapshot().Queue)
	client.AssertExpectations(t)
}

func TestRefresh_SignedOutIsNoop(t *testing.T) {
	tr, store, client := newTestTriage(t, time.Minute)
	store.Update(state.State.Logout)

	require.NoError(t, tr.Refresh(context.Background(), TriggerPoll))
	client.AssertNotCalled(t, "GetQueue", mock.Anything)
}

func TestRefresh_FailureKeepsQueue(t *testing.T) {
	tr, store, client := newTestTriage(t, time.Minute)
	store.Update(func(s state.State) state.State { return s.ReplaceQueue([]int64{1, 2}) })
	client.On("GetQueue", mock.Anything).Return(nil, errors.New("offline")).Once()

	assert.Error(t, tr.Refresh(context.Background(), TriggerPoll))

	st := store.Snapshot()
	assert.Equal(t, []int64{1, 2}, st.Queue)
	assert.Empty(t, st.Session.Error)
}

func TestRefresh_CoalescesConcurrentTriggers(t *testing.T) {
	tr, store, client := newTestTriage(t, time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	client.On("GetQueue", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]int64{3, 4}, nil).Once()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = tr.Refresh(context.Background(), TriggerPoll)
	}()
	<-started
	go func() {
		defer wg.Done()
		_ = tr.Refresh(context.Background(), TriggerPush)
	}()
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	client.AssertNumberOfCalls(t, "GetQueue", 1)
	assert.Equal(t, []int64{3, 4}, store.Snapshot().Queue)
}

func TestRefresh_DiscardsResultAfterLogout(t *testing.T) {
	tr, store, client := newTestTriage(t, time.Minute)
	client.On("GetQueue", mock.Anything).
		Run(func(mock.Arguments) { store.Update(state.State.Logout) }).
		Return([]int64{1}, nil).Once()

	require.NoError(t, tr.Refresh(context.Background(), TriggerPoll))
	assert.Empty(t, store.Snapshot().Queue)
}

func TestTrigger_RefreshesInBackground(t *testing.T) {
	tr, store, client := newTestTriage(t, time.Minute)
	client.On("GetQueue", mock.Anything).Return([]int64{8}, nil)

	tr.Trigger(8)

	require.Eventually(t, func() bool {
		return len(store.Snapshot().Queue) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAct(t *testing.T) {
	tr, store, client := newTestTriage(t, time.Minute)
	store.Update(func(s state.State) state.State { return s.ReplaceQueue([]int64{2, 9}) })
	client.On("QueueAction", mock.Anything, int64(2), domain.QueueActionDone).Return([]int64{9}, nil).Once()

	require.NoError(t, tr.Act(context.Background(), 2, domain.QueueActionDone))
	assert.Equal(t, []int64{9}, store.Snapshot().Queue)
}

func TestAct_InvalidAction(t *testing.T) {
	tr, _, client := newTestTriage(t, time.Minute)

	err := tr.Act(context.Background(), 2, domain.QueueAction("snooze"))

	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
	client.AssertNotCalled(t, "QueueAction", mock.Anything, mock.Anything, mock.Anything)
}

func TestStart_Polls(t *testing.T) {
	tr, store, client := newTestTriage(t, 20*time.Millisecond)
	client.On("GetQueue", mock.Anything).Return([]int64{1, 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tr.Start(ctx))
	defer tr.Stop()

	require.Eventually(t, func() bool {
		return len(store.Snapshot().Queue) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
