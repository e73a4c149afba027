package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/session"
	"github.com/danhigham/telequeue/internal/state"
	"github.com/danhigham/telequeue/internal/telegram/mocks"
)

type fakeConfigs struct {
	cfg     *domain.APIConfig
	saved   []domain.APIConfig
	cleared bool
}

func (f *fakeConfigs) LoadConfig() (*domain.APIConfig, error) { return f.cfg, nil }

func (f *fakeConfigs) SaveConfig(cfg domain.APIConfig) error {
	f.saved = append(f.saved, cfg)
	f.cfg = &cfg
	return nil
}

func (f *fakeConfigs) ClearConfig() error {
	f.cleared = true
	f.cfg = nil
	return nil
}

type fakeChats struct {
	loads  int
	onLoad func()
}

func (f *fakeChats) LoadChats(context.Context) error {
	f.loads++
	if f.onLoad != nil {
		f.onLoad()
	}
	return nil
}

type fakeLive struct {
	opens, closes int
	gens          []uint64
	closeErr      error
}

func (f *fakeLive) Open(_ context.Context, gen uint64) error {
	f.opens++
	f.gens = append(f.gens, gen)
	return nil
}

func (f *fakeLive) Close() error {
	f.closes++
	return f.closeErr
}

type fixture struct {
	store   *state.Store
	client  *mocks.Client
	configs *fakeConfigs
	chats   *fakeChats
	live    *fakeLive
	manager *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   state.New(nil),
		client:  &mocks.Client{},
		configs: &fakeConfigs{},
		chats:   &fakeChats{},
		live:    &fakeLive{},
	}
	f.manager = session.NewManager(f.store, f.client, f.configs, f.chats, f.live, zap.NewNop())
	t.Cleanup(func() { f.client.AssertExpectations(t) })
	return f
}

func (f *fixture) session() state.Session {
	return f.store.Snapshot().Session
}

func TestAuthFlow_TwoFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := &domain.UserProfile{ID: 42, FirstName: "Ann"}

	f.client.On("SendCode", mock.Anything, "+79991234567").Return("hash-1", nil).Once()
	f.client.On("SignIn", mock.Anything, "+79991234567", "12345").Return(nil, domain.ErrTwoFactorRequired).Once()
	f.client.On("SignInWithPassword", mock.Anything, "secret").Return(user, nil).Once()

	require.NoError(t, f.manager.RequestCode(ctx, "+7 999 123-45-67"))
	s := f.session()
	assert.Equal(t, domain.AuthStepCode, s.Step)
	assert.Equal(t, "+79991234567", s.PhoneNumber)
	assert.Equal(t, "hash-1", s.PhoneCodeHash)

	err := f.manager.SubmitCode(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrTwoFactorRequired)
	s = f.session()
	assert.Equal(t, domain.AuthStepPassword, s.Step)
	assert.Nil(t, s.User)
	assert.Empty(t, s.Error)

	require.NoError(t, f.manager.SubmitPassword(ctx, "secret"))
	s = f.session()
	assert.Equal(t, domain.AuthStepAuthenticated, s.Step)
	require.NotNil(t, s.User)
	assert.Equal(t, int64(42), s.User.ID)

	assert.Equal(t, 1, f.chats.loads)
	assert.Equal(t, 1, f.live.opens)
}

func TestSubmitCode_Success(t *testing.T) {
	f := newFixture(t)
	f.store.Update(func(s state.State) state.State { return s.CodeSent("+79991234567", "h") })
	f.client.On("SignIn", mock.Anything, "+79991234567", "54321").Return(&domain.UserProfile{ID: 1}, nil).Once()

	require.NoError(t, f.manager.SubmitCode(context.Background(), "54321"))
	assert.Equal(t, domain.AuthStepAuthenticated, f.session().Step)
	assert.Equal(t, 1, f.chats.loads)
	assert.Equal(t, 1, f.live.opens)
}

func TestSubmitCode_RejectsMalformedBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	f.store.Update(func(s state.State) state.State { return s.CodeSent("+79991234567", "h") })

	for _, code := range []string{"1234", "123456", "abcde", "12 34"} {
		err := f.manager.SubmitCode(context.Background(), code)

		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve, "code %q", code)
		assert.Equal(t, domain.AuthStepCode, f.session().Step)
		assert.Equal(t, err.Error(), f.session().Error)
	}
	f.client.AssertNotCalled(t, "SignIn", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitCode_RequiresRequestedCode(t *testing.T) {
	f := newFixture(t)

	err := f.manager.SubmitCode(context.Background(), "12345")

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "phone", ve.Field)
	assert.Equal(t, err.Error(), f.session().Error)
	f.client.AssertNotCalled(t, "SignIn", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitCode_BackendRejectionStaysOnCode(t *testing.T) {
	f := newFixture(t)
	f.store.Update(func(s state.State) state.State { return s.CodeSent("+79991234567", "h") })
	f.client.On("SignIn", mock.Anything, "+79991234567", "11111").
		Return(nil, &domain.AuthError{Message: "PHONE_CODE_INVALID"}).Once()

	err := f.manager.SubmitCode(context.Background(), "11111")
	require.Error(t, err)

	s := f.session()
	assert.Equal(t, domain.AuthStepCode, s.Step)
	assert.Equal(t, "PHONE_CODE_INVALID", s.Error)
	assert.Zero(t, f.chats.loads)
}

func TestRequestCode_Failures(t *testing.T) {
	t.Run("no digits", func(t *testing.T) {
		f := newFixture(t)

		err := f.manager.RequestCode(context.Background(), "abc")

		var cre *domain.CodeRequestError
		require.ErrorAs(t, err, &cre)
		var ve *domain.ValidationError
		assert.ErrorAs(t, err, &ve)
		assert.Equal(t, domain.AuthStepPhone, f.session().Step)
		f.client.AssertNotCalled(t, "SendCode", mock.Anything, mock.Anything)
	})

	t.Run("transport", func(t *testing.T) {
		f := newFixture(t)
		f.client.On("SendCode", mock.Anything, "+79991234567").
			Return("", &domain.TransportError{StatusCode: 500, Message: "flood wait"}).Once()

		err := f.manager.RequestCode(context.Background(), "89991234567")

		var cre *domain.CodeRequestError
		require.ErrorAs(t, err, &cre)
		s := f.session()
		assert.Equal(t, domain.AuthStepPhone, s.Step)
		assert.Equal(t, "request code: flood wait", s.Error)
		assert.Empty(t, s.PhoneNumber)
	})
}

func TestSubmitPassword_Failure(t *testing.T) {
	f := newFixture(t)
	f.store.Update(func(s state.State) state.State {
		return s.CodeSent("+79991234567", "h").PasswordRequired()
	})
	f.client.On("SignInWithPassword", mock.Anything, "wrong").
		Return(nil, &domain.AuthError{Message: "PASSWORD_HASH_INVALID"}).Once()

	require.Error(t, f.manager.SubmitPassword(context.Background(), "wrong"))
	s := f.session()
	assert.Equal(t, domain.AuthStepPassword, s.Step)
	assert.Equal(t, "PASSWORD_HASH_INVALID", s.Error)
}

func TestGoBackClearsError(t *testing.T) {
	f := newFixture(t)
	f.store.Update(func(s state.State) state.State {
		return s.CodeSent("+79991234567", "h").PasswordRequired().WithError("boom")
	})

	f.manager.GoBack()
	assert.Equal(t, domain.AuthStepCode, f.session().Step)
	assert.Empty(t, f.session().Error)

	f.manager.GoBack()
	f.manager.GoBack()
	assert.Equal(t, domain.AuthStepPhone, f.session().Step)
}

func TestRestore_WithoutPersistedConfig(t *testing.T) {
	f := newFixture(t)
	f.client.On("Initialize", mock.Anything, domain.APIConfig{}).Return(&domain.UserProfile{ID: 3}, nil).Once()

	require.NoError(t, f.manager.Restore(context.Background()))

	s := f.session()
	assert.Equal(t, domain.AuthStepAuthenticated, s.Step)
	assert.Nil(t, s.Config)
	assert.Equal(t, 1, f.live.opens)
}

func TestRestore_PersistedConfigNoSession(t *testing.T) {
	f := newFixture(t)
	f.configs.cfg = &domain.APIConfig{APIID: 5, APIHash: "x"}
	f.client.On("Initialize", mock.Anything, domain.APIConfig{APIID: 5, APIHash: "x"}).Return(nil, nil).Once()

	require.NoError(t, f.manager.Restore(context.Background()))

	s := f.session()
	assert.Equal(t, domain.AuthStepPhone, s.Step)
	require.NotNil(t, s.Config)
	assert.Equal(t, 5, s.Config.APIID)
	assert.Zero(t, f.live.opens)
}

func TestSubmitConfig(t *testing.T) {
	cfg := domain.APIConfig{APIID: 12345, APIHash: "abc"}

	t.Run("silent sign-in", func(t *testing.T) {
		f := newFixture(t)
		f.client.On("Initialize", mock.Anything, cfg).Return(&domain.UserProfile{ID: 8}, nil).Once()

		require.NoError(t, f.manager.SubmitConfig(context.Background(), cfg))
		assert.Equal(t, []domain.APIConfig{cfg}, f.configs.saved)
		assert.Equal(t, domain.AuthStepAuthenticated, f.session().Step)
		assert.Equal(t, 1, f.chats.loads)
	})

	t.Run("backend unreachable", func(t *testing.T) {
		f := newFixture(t)
		f.client.On("Initialize", mock.Anything, cfg).
			Return(nil, &domain.TransportError{Message: "connection refused"}).Once()

		require.Error(t, f.manager.SubmitConfig(context.Background(), cfg))
		s := f.session()
		assert.Equal(t, domain.AuthStepPhone, s.Step)
		assert.Equal(t, "connection refused", s.Error)
		assert.Equal(t, cfg, *s.Config)
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.configs.cfg = &domain.APIConfig{APIID: 1}
	f.store.Update(func(s state.State) state.State {
		return s.Authenticated(domain.UserProfile{ID: 1}).SetChats([]domain.Chat{{ID: 9}})
	})
	gen := f.store.Generation()
	f.client.On("Logout").Return().Once()

	require.NoError(t, f.manager.Logout())

	st := f.store.Snapshot()
	assert.Equal(t, domain.AuthStepPhone, st.Session.Step)
	assert.Nil(t, st.Session.User)
	assert.Empty(t, st.Chats)
	assert.Equal(t, gen+1, st.Generation)
	assert.True(t, f.configs.cleared)
	assert.Equal(t, 1, f.live.closes)
}

func TestLogout_ReportsCleanupErrors(t *testing.T) {
	f := newFixture(t)
	f.live.closeErr = errors.New("socket stuck")
	f.client.On("Logout").Return().Once()

	err := f.manager.Logout()
	assert.ErrorContains(t, err, "socket stuck")
	assert.True(t, f.configs.cleared)
}

func TestSignInAfterLogoutIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.store.Update(func(s state.State) state.State { return s.CodeSent("+79991234567", "h") })

	f.client.On("SignIn", mock.Anything, "+79991234567", "12345").
		Run(func(mock.Arguments) { f.store.Update(state.State.Logout) }).
		Return(&domain.UserProfile{ID: 1}, nil).Once()

	require.NoError(t, f.manager.SubmitCode(context.Background(), "12345"))

	s := f.session()
	assert.Equal(t, domain.AuthStepPhone, s.Step)
	assert.Nil(t, s.User)
	assert.Zero(t, f.chats.loads)
	assert.Zero(t, f.live.opens)
}

func TestLogoutDuringChatLoadSkipsLiveUpdates(t *testing.T) {
	f := newFixture(t)
	f.store.Update(func(s state.State) state.State { return s.CodeSent("+79991234567", "h") })
	f.chats.onLoad = func() { f.store.Update(state.State.Logout) }
	f.client.On("SignIn", mock.Anything, "+79991234567", "12345").Return(&domain.UserProfile{ID: 1}, nil).Once()

	require.NoError(t, f.manager.SubmitCode(context.Background(), "12345"))

	assert.Equal(t, 1, f.chats.loads)
	assert.Zero(t, f.live.opens)
	assert.Equal(t, domain.AuthStepPhone, f.session().Step)
}

func TestSignInOpensLiveForItsSession(t *testing.T) {
	f := newFixture(t)
	f.store.Update(func(s state.State) state.State { return s.CodeSent("+79991234567", "h") })
	gen := f.store.Generation()
	f.client.On("SignIn", mock.Anything, "+79991234567", "12345").Return(&domain.UserProfile{ID: 1}, nil).Once()

	require.NoError(t, f.manager.SubmitCode(context.Background(), "12345"))
	assert.Equal(t, []uint64{gen}, f.live.gens)
}
