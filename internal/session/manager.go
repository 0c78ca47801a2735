// Package session owns the active mailbox: creating it, recovering it
// from a link or from storage, and persisting every change.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/nhle/tempvortex/internal/event"
	"github.com/nhle/tempvortex/internal/logger"
	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/monitoring"
	"github.com/nhle/tempvortex/internal/provider"
)

var (
	// ErrCustomLoginUnsupported is returned when a custom login is
	// requested from a provider that assigns addresses itself.
	ErrCustomLoginUnsupported = errors.New("provider does not accept a custom login")

	// ErrNoAccount is returned by operations that need an active account.
	ErrNoAccount = errors.New("no active account")
)

// Source tells where Initialize found the session.
type Source int

const (
	NoSession Source = iota
	RecoveredFromLink
	RestoredFromStore
)

func (s Source) String() string {
	switch s {
	case RecoveredFromLink:
		return "recovered_from_link"
	case RestoredFromStore:
		return "restored_from_store"
	default:
		return "no_session"
	}
}

// Store persists the session record.
type Store interface {
	// LoadSession returns the saved session, or nil when none exists.
	LoadSession(ctx context.Context) (*model.Session, error)
	SaveSession(ctx context.Context, s *model.Session) error
}

// Listener is called with the new account after every change.
type Listener func(account *model.Account)

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the persistence backend.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithBus sets the bus account events are published on.
func WithBus(b *event.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger.Or(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithListener registers a change listener.
func WithListener(l Listener) Option {
	return func(m *Manager) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// WithDefaultProvider sets the provider used before any account exists.
func WithDefaultProvider(id model.ProviderID) Option {
	return func(m *Manager) {
		if id.Valid() {
			m.provider = id
		}
	}
}

// Manager is the session state machine. With no account it is in the
// NoSession state; otherwise the account is Active on its provider.
type Manager struct {
	registry  *provider.Registry
	store     Store
	bus       *event.Bus
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	listeners []Listener

	// opMu serializes account operations so two concurrent creations
	// cannot interleave their state transitions.
	opMu gosync.Mutex

	mu       gosync.RWMutex
	account  *model.Account
	provider model.ProviderID
}

// NewManager creates a Manager in the NoSession state.
func NewManager(registry *provider.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		logger:   zap.NewNop(),
		provider: model.ProviderOneSecMail,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize restores the session. Recovery parameters on entry win
// over the stored session; they are removed from entry whether or not
// they were usable. When neither yields an account the manager stays
// in NoSession.
func (m *Manager) Initialize(ctx context.Context, entry *url.URL) (Source, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if entry != nil && HasRecovery(entry.Query()) {
		acct, err := DecodeRecovery(entry.Query())
		StripRecovery(entry)
		switch {
		case err == nil:
			m.logger.Info("session recovered from link",
				zap.String("provider", string(acct.Provider)),
				zap.String("address", acct.Address),
			)
			m.activate(ctx, acct)
			return RecoveredFromLink, nil
		case errors.Is(err, ErrNoRecovery):
		default:
			m.logger.Warn("ignoring recovery link", zap.Error(err))
		}
	}

	if m.store != nil {
		saved, err := m.store.LoadSession(ctx)
		if err != nil {
			m.logger.Warn("loading saved session failed", zap.Error(err))
		} else if saved != nil {
			if saved.Provider.Valid() {
				m.mu.Lock()
				m.provider = saved.Provider
				m.mu.Unlock()
			}
			if saved.Account != nil && saved.Account.Provider.Valid() {
				m.logger.Info("session restored",
					zap.String("provider", string(saved.Account.Provider)),
					zap.String("address", saved.Account.Address),
				)
				m.activate(ctx, saved.Account)
				return RestoredFromStore, nil
			}
		}
	}

	return NoSession, nil
}

// Recover activates the account described by recovery parameters. The
// current session is untouched when values carry no usable account.
func (m *Manager) Recover(ctx context.Context, values url.Values) (*model.Account, error) {
	acct, err := DecodeRecovery(values)
	if err != nil {
		return nil, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if cur := m.Current(); cur != nil && cur.Same(*acct) {
		return cur, nil
	}
	m.logger.Info("session recovered from link",
		zap.String("provider", string(acct.Provider)),
		zap.String("address", acct.Address),
	)
	m.activate(ctx, acct)
	return m.Current(), nil
}

// CreateAccount provisions a mailbox on id, using customLogin when the
// provider allows it. On failure the current session is left as is.
func (m *Manager) CreateAccount(
	ctx context.Context,
	id model.ProviderID,
	customLogin string,
) (*model.Account, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.createAccount(ctx, id, customLogin)
}

// SwitchProvider creates a fresh random mailbox on the next provider
// in the rotation.
func (m *Manager) SwitchProvider(ctx context.Context) (*model.Account, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.createAccount(ctx, m.Provider().Next(), "")
}

func (m *Manager) createAccount(
	ctx context.Context,
	id model.ProviderID,
	customLogin string,
) (*model.Account, error) {
	acct, err := m.provision(ctx, id, customLogin)
	m.metrics.ObserveAccount(string(id), err)
	if err != nil {
		reason := "rejected"
		if provider.IsNetworkError(err) {
			reason = "network"
		}
		m.logger.Warn("account creation failed",
			zap.String("provider", string(id)),
			zap.String("reason", reason),
			zap.Error(err),
		)

		e := event.New(event.TypeAccountFailed, nil)
		e.Provider = id
		e.Error = err.Error()
		e.Reason = reason
		m.publish(e)
		return nil, err
	}

	m.logger.Info("account created",
		zap.String("provider", string(acct.Provider)),
		zap.String("address", acct.Address),
		zap.Bool("custom_login", customLogin != ""),
	)
	m.activate(ctx, acct)

	out := *acct
	return &out, nil
}

func (m *Manager) provision(
	ctx context.Context,
	id model.ProviderID,
	customLogin string,
) (*model.Account, error) {
	adapter, err := m.registry.Lookup(id)
	if err != nil {
		return nil, provider.NewError(provider.KindAccountCreation, id, err)
	}
	if customLogin != "" && !adapter.Capabilities().CustomLogin {
		return nil, provider.NewError(provider.KindAccountCreation, id, ErrCustomLoginUnsupported)
	}

	domains := adapter.Domains(ctx)
	if len(domains) == 0 {
		return nil, provider.Errorf(provider.KindAccountCreation, id, "no domains available")
	}

	acct, err := adapter.CreateAccount(ctx, domains[0], customLogin)
	if err != nil {
		return nil, err
	}
	if acct.Provider == "" {
		acct.Provider = id
	}
	return acct, nil
}

// activate makes acct the current account, persists the session and
// notifies listeners.
func (m *Manager) activate(ctx context.Context, acct *model.Account) {
	cp := *acct

	m.mu.Lock()
	m.account = &cp
	m.provider = cp.Provider
	m.mu.Unlock()

	m.persist(ctx)

	for _, l := range m.listeners {
		l(m.Current())
	}

	m.publish(event.New(event.TypeAccountChanged, &cp))
}

func (m *Manager) persist(ctx context.Context) {
	if m.store == nil {
		return
	}
	m.mu.RLock()
	rec := &model.Session{Provider: m.provider}
	if m.account != nil {
		cp := *m.account
		rec.Account = &cp
	}
	m.mu.RUnlock()

	if err := m.store.SaveSession(ctx, rec); err != nil {
		m.logger.Warn("saving session failed", zap.Error(err))
	}
}

// RecoveryURL returns a link that restores the current account on any
// device. It fails when no account is active.
func (m *Manager) RecoveryURL(base string) (string, error) {
	acct := m.Current()
	if acct == nil {
		return "", fmt.Errorf("building recovery link: %w", ErrNoAccount)
	}
	return EncodeRecovery(base, *acct)
}

// Current returns a copy of the active account, or nil.
func (m *Manager) Current() *model.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.account == nil {
		return nil
	}
	cp := *m.account
	return &cp
}

// Provider returns the active provider.
func (m *Manager) Provider() model.ProviderID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.provider
}

// Capabilities returns the capabilities of provider id.
func (m *Manager) Capabilities(id model.ProviderID) (provider.Capabilities, error) {
	adapter, err := m.registry.Lookup(id)
	if err != nil {
		return provider.Capabilities{}, err
	}
	return adapter.Capabilities(), nil
}

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}
