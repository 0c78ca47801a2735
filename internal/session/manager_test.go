package session

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempvortex/internal/event"
	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/provider"
	"github.com/nhle/tempvortex/internal/testutil"
)

// MockStore is a testify mock of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LoadSession(ctx context.Context) (*model.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockStore) SaveSession(ctx context.Context, s *model.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func sessionFor(address string, id model.ProviderID) interface{} {
	return mock.MatchedBy(func(s *model.Session) bool {
		return s.Account != nil && s.Account.Address == address && s.Provider == id
	})
}

func TestInitializePrefersRecoveryLink(t *testing.T) {
	store := new(MockStore)
	store.On("SaveSession", mock.Anything, sessionFor("ab12@mail.tm", model.ProviderMailTM)).Return(nil)

	var notified []*model.Account
	m := NewManager(testutil.NewRegistry(t),
		WithStore(store),
		WithListener(func(a *model.Account) { notified = append(notified, a) }),
	)

	entry, err := url.Parse("https://tv.example/?ref=mail&account=ab12%40mail.tm&provider=mailtm&token=jwt.abc")
	require.NoError(t, err)

	src, err := m.Initialize(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, RecoveredFromLink, src)

	acct := m.Current()
	require.NotNil(t, acct)
	assert.Equal(t, "ab12@mail.tm", acct.Address)
	assert.Equal(t, "jwt.abc", acct.Token)
	assert.Equal(t, model.ProviderMailTM, m.Provider())

	assert.Equal(t, "ref=mail", entry.RawQuery)
	require.Len(t, notified, 1)
	assert.Equal(t, "ab12@mail.tm", notified[0].Address)

	store.AssertNotCalled(t, "LoadSession", mock.Anything)
	store.AssertExpectations(t)
}

func TestInitializeRestoresFromStore(t *testing.T) {
	saved := &model.Session{
		Account:  &model.Account{Address: "zz@guerrillamail.com", Token: "sid", Provider: model.ProviderGuerrilla},
		Provider: model.ProviderGuerrilla,
	}
	store := new(MockStore)
	store.On("LoadSession", mock.Anything).Return(saved, nil)
	store.On("SaveSession", mock.Anything, mock.Anything).Return(nil)

	m := NewManager(testutil.NewRegistry(t), WithStore(store))

	src, err := m.Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RestoredFromStore, src)
	assert.Equal(t, "zz@guerrillamail.com", m.Current().Address)
	assert.Equal(t, model.ProviderGuerrilla, m.Provider())
}

func TestInitializeInvalidLinkFallsBack(t *testing.T) {
	store := new(MockStore)
	store.On("LoadSession", mock.Anything).Return(nil, nil)

	m := NewManager(testutil.NewRegistry(t), WithStore(store))

	entry, err := url.Parse("https://tv.example/?account=x%40y.com&provider=gmail")
	require.NoError(t, err)

	src, err := m.Initialize(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, NoSession, src)
	assert.Nil(t, m.Current())
	assert.Empty(t, entry.RawQuery)
	store.AssertNotCalled(t, "SaveSession", mock.Anything, mock.Anything)
}

func TestInitializeToleratesStoreErrors(t *testing.T) {
	store := new(MockStore)
	store.On("LoadSession", mock.Anything).Return(nil, errors.New("disk gone"))

	m := NewManager(testutil.NewRegistry(t), WithStore(store), WithDefaultProvider(model.ProviderMailTM))

	src, err := m.Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, NoSession, src)
	assert.Equal(t, model.ProviderMailTM, m.Provider())
}

func TestCreateAccountActivatesAndPersists(t *testing.T) {
	store := new(MockStore)
	store.On("SaveSession", mock.Anything, sessionFor("picked@1secmail.test", model.ProviderOneSecMail)).
		Return(errors.New("read-only"))

	bus := event.NewBus()
	events, cancel := bus.Subscribe(8)
	defer cancel()

	m := NewManager(testutil.NewRegistry(t), WithStore(store), WithBus(bus))

	acct, err := m.CreateAccount(context.Background(), model.ProviderOneSecMail, "picked")
	require.NoError(t, err, "persistence failures are not fatal")
	assert.Equal(t, "picked@1secmail.test", acct.Address)
	assert.Equal(t, acct, m.Current())

	select {
	case e := <-events:
		assert.Equal(t, event.TypeAccountChanged, e.Type)
		assert.Equal(t, "picked@1secmail.test", e.Address)
	case <-time.After(time.Second):
		t.Fatal("no account_changed event")
	}
	store.AssertExpectations(t)
}

func TestCreateAccountFailureKeepsSession(t *testing.T) {
	mailtm := testutil.NewFakeProvider(model.ProviderMailTM)
	mailtm.CreateFunc = func(context.Context, string, string) (*model.Account, error) {
		return nil, provider.Errorf(provider.KindAccountCreation, model.ProviderMailTM, "This value is already used.")
	}
	bus := event.NewBus()
	m := NewManager(testutil.NewRegistry(t, mailtm), WithBus(bus))

	before, err := m.CreateAccount(context.Background(), model.ProviderOneSecMail, "")
	require.NoError(t, err)

	events, cancel := bus.Subscribe(8)
	defer cancel()

	_, err = m.CreateAccount(context.Background(), model.ProviderMailTM, "taken")
	require.Error(t, err)
	assert.True(t, provider.IsKind(err, provider.KindAccountCreation))
	assert.Contains(t, err.Error(), "already used")

	assert.Equal(t, before, m.Current())
	assert.Equal(t, model.ProviderOneSecMail, m.Provider())

	e := <-events
	assert.Equal(t, event.TypeAccountFailed, e.Type)
	assert.Equal(t, model.ProviderMailTM, e.Provider)
	assert.Equal(t, "rejected", e.Reason)
}

func TestCustomLoginRejectedWithoutCapability(t *testing.T) {
	guerrilla := testutil.NewFakeProvider(model.ProviderGuerrilla)
	guerrilla.Caps.CustomLogin = false
	m := NewManager(testutil.NewRegistry(t, guerrilla))

	_, err := m.CreateAccount(context.Background(), model.ProviderGuerrilla, "mine")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCustomLoginUnsupported)
	assert.True(t, provider.IsKind(err, provider.KindAccountCreation))
	assert.Zero(t, guerrilla.Calls("CreateAccount"))
	assert.Nil(t, m.Current())
}

func TestSwitchProviderRotates(t *testing.T) {
	var resets int
	m := NewManager(testutil.NewRegistry(t), WithListener(func(*model.Account) { resets++ }))

	want := []model.ProviderID{
		model.ProviderMailTM,
		model.ProviderGuerrilla,
		model.ProviderOneSecMail,
	}
	for _, id := range want {
		acct, err := m.SwitchProvider(context.Background())
		require.NoError(t, err)
		assert.Equal(t, id, acct.Provider)
		assert.Equal(t, id, m.Provider())
	}
	assert.Equal(t, 3, resets)
}

func TestRecoveryURL(t *testing.T) {
	m := NewManager(testutil.NewRegistry(t))

	_, err := m.RecoveryURL("https://tv.example/")
	assert.ErrorIs(t, err, ErrNoAccount)

	_, err = m.CreateAccount(context.Background(), model.ProviderMailTM, "")
	require.NoError(t, err)

	link, err := m.RecoveryURL("https://tv.example/")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	acct, err := DecodeRecovery(u.Query())
	require.NoError(t, err)
	assert.True(t, acct.Same(*m.Current()))
}

func TestRecoverKeepsSessionOnBadLink(t *testing.T) {
	var resets int
	m := NewManager(testutil.NewRegistry(t), WithListener(func(*model.Account) { resets++ }))

	_, err := m.CreateAccount(context.Background(), model.ProviderOneSecMail, "keep")
	require.NoError(t, err)

	_, err = m.Recover(context.Background(), url.Values{ParamAccount: {"x@y.com"}, ParamProvider: {"gmail"}})
	assert.ErrorIs(t, err, ErrInvalidRecovery)
	assert.Equal(t, "keep@1secmail.test", m.Current().Address)

	values := url.Values{ParamAccount: {"ab@mail.tm"}, ParamProvider: {"mailtm"}, ParamToken: {"jwt"}}
	acct, err := m.Recover(context.Background(), values)
	require.NoError(t, err)
	assert.Equal(t, "ab@mail.tm", acct.Address)

	_, err = m.Recover(context.Background(), values)
	require.NoError(t, err)
	assert.Equal(t, 2, resets, "recovering the active account again does not reset the inbox")
}
