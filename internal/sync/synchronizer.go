// Package sync keeps a local view of the active mailbox up to date by
// polling its provider.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/tempvortex/internal/event"
	"github.com/nhle/tempvortex/internal/logger"
	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/monitoring"
	"github.com/nhle/tempvortex/internal/otp"
	"github.com/nhle/tempvortex/internal/provider"
)

const (
	defaultInterval     = 8 * time.Second
	defaultFetchTimeout = 30 * time.Second
)

var (
	// ErrStale is returned when a result belongs to an account that has
	// since been replaced. Nothing was changed.
	ErrStale = errors.New("result belongs to a previous account")

	// ErrNoAccount is returned when no mailbox is active.
	ErrNoAccount = errors.New("no active account")

	// ErrNotFound is returned for ids not present in the local inbox.
	ErrNotFound = errors.New("message not found")
)

// Selection is the result of opening a message.
type Selection struct {
	Message model.Message `json:"message"`

	// Code is the one-time passcode found in the message, if any.
	Code string `json:"code,omitempty"`
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithFetchTimeout bounds every provider call.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger.Or(l)
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithExtractor replaces the passcode extractor.
func WithExtractor(e otp.Extractor) Option {
	return func(s *Synchronizer) {
		if e != nil {
			s.extractor = e
		}
	}
}

// Synchronizer polls the active account's provider, detects newly
// arrived messages and merges fetched content into the local list.
//
// Every account change bumps a generation counter. Provider results
// are applied only if the generation they were started under is still
// current, so a slow response for a previous mailbox can never leak
// into the new one.
type Synchronizer struct {
	registry     *provider.Registry
	bus          *event.Bus
	interval     time.Duration
	fetchTimeout time.Duration
	logger       *zap.Logger
	metrics      *monitoring.Metrics
	extractor    otp.Extractor

	// pollMu keeps polls from overlapping.
	pollMu gosync.Mutex
	group  singleflight.Group

	mu         gosync.Mutex
	account    *model.Account
	generation uint64
	seen       map[string]struct{}
	messages   []model.Message
	content    map[string]*model.Content
	read       map[string]bool
	deleted    map[string]struct{}
	cancel     context.CancelFunc
	triggerCh  chan struct{}
}

// New creates a stopped Synchronizer. Call Reset to start following
// an account.
func New(registry *provider.Registry, bus *event.Bus, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		registry:     registry,
		bus:          bus,
		interval:     defaultInterval,
		fetchTimeout: defaultFetchTimeout,
		logger:       zap.NewNop(),
		extractor:    otp.Heuristic{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clearLocked()
	return s
}

func (s *Synchronizer) clearLocked() {
	s.seen = make(map[string]struct{})
	s.messages = nil
	s.content = make(map[string]*model.Content)
	s.read = make(map[string]bool)
	s.deleted = make(map[string]struct{})
}

// Reset switches to account, discarding all local state, and starts a
// new polling loop. A nil account stops polling.
func (s *Synchronizer) Reset(account *model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.clearLocked()
	s.account = nil
	s.triggerCh = nil

	if account == nil {
		return
	}

	acct := *account
	s.account = &acct

	ctx, cancel := context.WithCancel(context.Background())
	trigger := make(chan struct{}, 1)
	s.cancel = cancel
	s.triggerCh = trigger

	go s.run(ctx, s.generation, trigger)
}

// Stop halts the polling loop and keeps the local state.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.triggerCh = nil
}

// Refresh asks the polling loop for an immediate extra poll. It never
// blocks; a refresh already pending absorbs this one.
func (s *Synchronizer) Refresh() {
	s.mu.Lock()
	trigger := s.triggerCh
	s.mu.Unlock()

	if trigger == nil {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
}

// run polls immediately and then on every tick or refresh until ctx is
// cancelled or its generation is superseded.
func (s *Synchronizer) run(ctx context.Context, gen uint64, trigger <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if errors.Is(s.poll(ctx, gen), ErrStale) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-trigger:
		}
		if errors.Is(s.poll(ctx, gen), ErrStale) {
			return
		}
	}
}

// Poll fetches the message list once for the current account.
func (s *Synchronizer) Poll(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	return s.poll(ctx, gen)
}

func (s *Synchronizer) poll(ctx context.Context, gen uint64) error {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	acct, err := s.snapshotAccount(gen)
	if err != nil {
		return err
	}

	adapter, err := s.registry.Lookup(acct.Provider)
	if err != nil {
		return fmt.Errorf("polling %s: %w", acct.Address, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	start := time.Now()
	summaries, err := adapter.Messages(fetchCtx, acct)
	cancel()
	s.metrics.ObservePoll(string(acct.Provider), time.Since(start), err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrStale
	}

	if err != nil {
		s.logger.Warn("inbox poll failed",
			zap.String("provider", string(acct.Provider)),
			zap.String("address", acct.Address),
			zap.Bool("network", provider.IsNetworkError(err)),
			zap.Error(err),
		)
		e := event.New(event.TypeSyncFailed, &acct)
		e.Error = err.Error()
		s.publish(e)
		return err
	}

	var fresh []model.Message
	for _, m := range summaries {
		if _, ok := s.seen[m.ID]; ok {
			continue
		}
		s.seen[m.ID] = struct{}{}
		fresh = append(fresh, m)

		e := event.New(event.TypeNewMessage, &acct)
		e.Messages = []model.Message{m}
		s.publish(e)
	}
	if len(fresh) > 0 {
		e := event.New(event.TypeNewMail, &acct)
		e.Messages = fresh
		s.publish(e)
		s.logger.Info("new mail",
			zap.String("address", acct.Address),
			zap.Int("count", len(fresh)),
		)
	}

	s.messages = s.mergeLocked(summaries)
	s.metrics.ObserveInbox(string(acct.Provider), len(fresh), len(s.messages))

	e := event.New(event.TypeInboxReplaced, &acct)
	e.Messages = copyMessages(s.messages)
	s.publish(e)

	return nil
}

// mergeLocked builds the new list from provider summaries, carrying
// fetched content and read state forward and dropping deleted ids.
func (s *Synchronizer) mergeLocked(summaries []model.Message) []model.Message {
	list := make([]model.Message, 0, len(summaries))
	included := make(map[string]struct{}, len(summaries))
	for _, m := range summaries {
		if _, gone := s.deleted[m.ID]; gone {
			continue
		}
		if _, dup := included[m.ID]; dup {
			continue
		}
		included[m.ID] = struct{}{}

		if c, ok := s.content[m.ID]; ok {
			m.Content = c
		}
		if s.read[m.ID] {
			m.IsRead = true
		}
		list = append(list, m)
	}
	return list
}

// Select opens a message: it fetches the content if needed, marks the
// message read and looks for a passcode. Concurrent selects of the same
// message share a single fetch.
func (s *Synchronizer) Select(ctx context.Context, id string) (*Selection, error) {
	s.mu.Lock()
	if s.account == nil {
		s.mu.Unlock()
		return nil, ErrNoAccount
	}
	gen := s.generation
	acct := *s.account
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if s.messages[idx].Hydrated() {
		sel := s.markReadLocked(idx)
		s.mu.Unlock()
		return sel, nil
	}
	s.mu.Unlock()

	// The shared fetch outlives any single caller; each caller only
	// stops waiting when its own context ends.
	fetchBase := context.WithoutCancel(ctx)
	ch := s.group.DoChan(fmt.Sprintf("%d/%s", gen, id), func() (interface{}, error) {
		adapter, err := s.registry.Lookup(acct.Provider)
		if err != nil {
			return nil, err
		}
		fetchCtx, cancel := context.WithTimeout(fetchBase, s.fetchTimeout)
		defer cancel()
		content, err := adapter.MessageContent(fetchCtx, acct, id)
		s.metrics.ObserveHydration(string(acct.Provider), err)
		if err == nil {
			s.storeContent(gen, acct, id, content)
		}
		return content, err
	})

	var (
		v   interface{}
		err error
	)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		v, err = res.Val, res.Err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return nil, ErrStale
	}
	if err != nil {
		s.logger.Warn("message content fetch failed",
			zap.String("provider", string(acct.Provider)),
			zap.String("message_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	content, _ := v.(*model.Content)
	if content == nil {
		content = &model.Content{}
	}
	if _, ok := s.content[id]; !ok {
		s.content[id] = content
	}

	idx = s.indexLocked(id)
	if idx < 0 {
		return nil, ErrNotFound
	}
	s.messages[idx].Content = s.content[id]
	return s.markReadLocked(idx), nil
}

// storeContent records fetched content for id under generation gen and
// announces the first hydration. It runs inside the shared fetch, so
// the content is kept even when every waiting caller has gone away.
func (s *Synchronizer) storeContent(gen uint64, acct model.Account, id string, content *model.Content) {
	if content == nil {
		content = &model.Content{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	if _, ok := s.content[id]; ok {
		return
	}
	s.content[id] = content

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.messages[idx].Content = content

	msg := s.messages[idx]
	e := event.New(event.TypeHydrated, &acct)
	e.MessageID = id
	if code, ok := s.extractor.Extract(content.Text()); ok {
		e.Code = code
	}
	e.Messages = []model.Message{msg}
	s.publish(e)
}

func (s *Synchronizer) markReadLocked(idx int) *Selection {
	m := &s.messages[idx]
	m.IsRead = true
	s.read[m.ID] = true

	sel := &Selection{Message: *m}
	if m.Content != nil {
		if code, ok := s.extractor.Extract(m.Content.Text()); ok {
			sel.Code = code
		}
	}
	return sel
}

// Delete removes a message through the provider and, on success,
// locally. The id stays hidden even if the provider keeps listing it.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	acct, gen, err := s.current()
	if err != nil {
		return err
	}

	adapter, err := s.registry.Lookup(acct.Provider)
	if err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	err = adapter.DeleteMessage(fetchCtx, acct, id)
	cancel()
	s.metrics.ObserveDelete(string(acct.Provider), err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrStale
	}

	s.deleted[id] = struct{}{}
	delete(s.content, id)
	delete(s.read, id)
	if idx := s.indexLocked(id); idx >= 0 {
		s.messages = append(s.messages[:idx:idx], s.messages[idx+1:]...)
	}

	e := event.New(event.TypeInboxReplaced, &acct)
	e.Messages = copyMessages(s.messages)
	s.publish(e)

	return nil
}

// DownloadAttachment retrieves an attachment of a message, fetching the
// message content first when it has not been opened yet.
func (s *Synchronizer) DownloadAttachment(
	ctx context.Context,
	messageID string,
	attachmentID string,
) (*provider.Download, error) {
	msg, acct, gen, err := s.snapshotMessage(messageID)
	if err != nil {
		return nil, err
	}
	if !msg.Hydrated() {
		if _, err := s.Select(ctx, messageID); err != nil {
			return nil, err
		}
		var again uint64
		msg, acct, again, err = s.snapshotMessage(messageID)
		if err != nil {
			return nil, err
		}
		if again != gen {
			return nil, ErrStale
		}
	}

	att, ok := msg.Content.Attachment(attachmentID)
	if !ok {
		return nil, fmt.Errorf("attachment %q: %w", attachmentID, ErrNotFound)
	}

	adapter, err := s.registry.Lookup(acct.Provider)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	dl, err := adapter.DownloadAttachment(fetchCtx, acct, messageID, att)
	s.metrics.ObserveDownload(string(acct.Provider), err)
	return dl, err
}

// Messages returns a snapshot of the local inbox in provider order.
func (s *Synchronizer) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMessages(s.messages)
}

// Message returns a single message by id.
func (s *Synchronizer) Message(id string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Message{}, false
	}
	return s.messages[idx], true
}

// Account returns the account being followed, or nil.
func (s *Synchronizer) Account() *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account == nil {
		return nil
	}
	acct := *s.account
	return &acct
}

func (s *Synchronizer) current() (model.Account, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account == nil {
		return model.Account{}, 0, ErrNoAccount
	}
	return *s.account, s.generation, nil
}

// snapshotMessage reads a message together with the account and
// generation it belongs to.
func (s *Synchronizer) snapshotMessage(id string) (model.Message, model.Account, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account == nil {
		return model.Message{}, model.Account{}, 0, ErrNoAccount
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Message{}, model.Account{}, 0, ErrNotFound
	}
	return s.messages[idx], *s.account, s.generation, nil
}

func (s *Synchronizer) snapshotAccount(gen uint64) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return model.Account{}, ErrStale
	}
	if s.account == nil {
		return model.Account{}, ErrNoAccount
	}
	return *s.account, nil
}

func (s *Synchronizer) indexLocked(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

func copyMessages(in []model.Message) []model.Message {
	if in == nil {
		return nil
	}
	out := make([]model.Message, len(in))
	copy(out, in)
	return out
}
