package session

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/metrics"
	"github.com/danhigham/telequeue/internal/state"
	"github.com/danhigham/telequeue/internal/telegram"
)

// ConfigStore persists the API config blob.
type ConfigStore interface {
	LoadConfig() (*domain.APIConfig, error)
	SaveConfig(cfg domain.APIConfig) error
	ClearConfig() error
}

// ChatLoader fills the chat collection after sign-in.
type ChatLoader interface {
	LoadChats(ctx context.Context) error
}

// Live is the live-update subscription opened after sign-in.
type Live interface {
	Open(ctx context.Context, gen uint64) error
	Close() error
}

// Manager drives the phone → code → password → authenticated flow.
//
// Every operation stores a failure in Session.Error and also returns it.
// Results that arrive after a logout are dropped.
type Manager struct {
	store   *state.Store
	client  telegram.AuthAPI
	configs ConfigStore
	chats   ChatLoader
	live    Live
	logger  *zap.Logger
}

func NewManager(store *state.Store, client telegram.AuthAPI, configs ConfigStore, chats ChatLoader, live Live, logger *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		client:  client,
		configs: configs,
		chats:   chats,
		live:    live,
		logger:  logger.Named("session"),
	}
}

// Restore loads the persisted config and attempts a silent sign-in with it.
// A missing config still attempts the silent sign-in with empty credentials.
func (m *Manager) Restore(ctx context.Context) error {
	gen := m.store.Generation()

	cfg, err := m.configs.LoadConfig()
	if err != nil {
		m.logger.Warn("failed to load persisted config", zap.Error(err))
	}
	if cfg == nil {
		cfg = &domain.APIConfig{}
	} else {
		m.store.UpdateIf(gen, func(s state.State) state.State { return s.WithConfig(*cfg) })
	}

	return m.initialize(ctx, gen, *cfg)
}

// SubmitConfig stores and persists cfg, then attempts a silent sign-in.
func (m *Manager) SubmitConfig(ctx context.Context, cfg domain.APIConfig) error {
	gen := m.store.Generation()
	m.store.UpdateIf(gen, func(s state.State) state.State { return s.WithConfig(cfg).ClearError() })

	if err := m.configs.SaveConfig(cfg); err != nil {
		m.logger.Warn("failed to persist config", zap.Error(err))
	}

	return m.initialize(ctx, gen, cfg)
}

func (m *Manager) initialize(ctx context.Context, gen uint64, cfg domain.APIConfig) error {
	user, err := m.client.Initialize(ctx, cfg)
	if err != nil {
		m.logger.Info("silent sign-in failed", zap.Error(err))
		return m.fail(gen, err)
	}
	if user == nil {
		m.logger.Debug("no existing session")
		return nil
	}
	return m.authenticated(ctx, gen, *user)
}

// RequestCode normalizes phone and asks the backend to send a login code.
func (m *Manager) RequestCode(ctx context.Context, phone string) error {
	gen := m.store.Generation()

	normalized := NormalizePhone(phone)
	if normalized == "+" {
		return m.fail(gen, &domain.CodeRequestError{
			Cause: &domain.ValidationError{Field: "phone", Message: "must contain digits"},
		})
	}

	hash, err := m.client.SendCode(ctx, normalized)
	if err != nil {
		return m.fail(gen, &domain.CodeRequestError{Cause: err})
	}

	if !m.store.UpdateIf(gen, func(s state.State) state.State { return s.CodeSent(normalized, hash) }) {
		m.discarded("request_code")
	}
	return nil
}

// SubmitCode signs in with the login code. It returns
// domain.ErrTwoFactorRequired after moving the flow to the password step.
func (m *Manager) SubmitCode(ctx context.Context, code string) error {
	gen := m.store.Generation()

	if !ValidCode(code) {
		return m.fail(gen, &domain.ValidationError{Field: "code", Message: "must be exactly 5 digits"})
	}

	sess := m.store.Snapshot().Session
	if sess.PhoneNumber == "" || sess.PhoneCodeHash == "" {
		return m.fail(gen, &domain.ValidationError{Field: "phone", Message: "no code was requested, repeat sending the code"})
	}

	user, err := m.client.SignIn(ctx, sess.PhoneNumber, code)
	if errors.Is(err, domain.ErrTwoFactorRequired) {
		if !m.store.UpdateIf(gen, func(s state.State) state.State { return s.PasswordRequired().ClearError() }) {
			m.discarded("submit_code")
		}
		return err
	}
	if err != nil {
		return m.fail(gen, err)
	}
	return m.authenticated(ctx, gen, *user)
}

// SubmitPassword completes a two-factor sign-in.
func (m *Manager) SubmitPassword(ctx context.Context, password string) error {
	gen := m.store.Generation()

	if password == "" {
		return m.fail(gen, &domain.ValidationError{Field: "password", Message: "must not be empty"})
	}

	user, err := m.client.SignInWithPassword(ctx, password)
	if err != nil {
		return m.fail(gen, err)
	}
	return m.authenticated(ctx, gen, *user)
}

func (m *Manager) GoBack() {
	m.store.Update(state.State.GoBack)
}

// Logout resets all state, closes live updates and forgets the persisted config.
func (m *Manager) Logout() error {
	m.store.Update(state.State.Logout)
	m.client.Logout()

	err := multierr.Combine(
		m.live.Close(),
		m.configs.ClearConfig(),
	)
	if err != nil {
		m.logger.Warn("logout cleanup failed", zap.Error(err))
	}
	m.logger.Info("logged out")
	return err
}

func (m *Manager) authenticated(ctx context.Context, gen uint64, user domain.UserProfile) error {
	if !m.store.UpdateIf(gen, func(s state.State) state.State { return s.Authenticated(user) }) {
		m.discarded("sign_in")
		return nil
	}
	m.logger.Info("signed in", zap.Int64("user_id", user.ID))

	if err := m.chats.LoadChats(ctx); err != nil {
		m.logger.Warn("failed to load chats after sign-in", zap.Error(err))
	}
	if m.store.Generation() != gen {
		m.discarded("live_open")
		return nil
	}
	if err := m.live.Open(ctx, gen); err != nil {
		m.logger.Warn("failed to open live updates", zap.Error(err))
	}
	return nil
}

// fail surfaces err as the session error unless the session changed meanwhile.
func (m *Manager) fail(gen uint64, err error) error {
	if !m.store.UpdateIf(gen, func(s state.State) state.State { return s.WithError(err.Error()) }) {
		m.discarded("auth_error")
	}
	return err
}

func (m *Manager) discarded(operation string) {
	metrics.StaleResponsesTotal.WithLabelValues(operation).Inc()
	m.logger.Debug("discarding stale response", zap.String("operation", operation))
}
