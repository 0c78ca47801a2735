// Package ui is the terminal client: a live inbox for the active
// mailbox driven by engine events.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/tempvortex/internal/event"
	"github.com/nhle/tempvortex/internal/export"
	"github.com/nhle/tempvortex/internal/keys"
	"github.com/nhle/tempvortex/internal/logger"
	"github.com/nhle/tempvortex/internal/provider"
	"github.com/nhle/tempvortex/internal/session"
	"github.com/nhle/tempvortex/internal/sync"
	"github.com/nhle/tempvortex/internal/theme"
	"github.com/nhle/tempvortex/internal/ui/addressform"
	helpview "github.com/nhle/tempvortex/internal/ui/help"
	"github.com/nhle/tempvortex/internal/ui/inbox"
	"github.com/nhle/tempvortex/internal/ui/reader"
)

// opTimeout bounds every engine call made from the UI.
const opTimeout = 30 * time.Second

// Engine is what the terminal client drives.
type Engine struct {
	Session  *session.Manager
	Sync     *sync.Synchronizer
	Registry *provider.Registry
	Bus      *event.Bus
	Logger   *zap.Logger

	// RecoveryBaseURL is the origin used for recovery links.
	RecoveryBaseURL string

	// ExportDir receives saved .eml files.
	ExportDir string
}

// ViewState is the active view.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewReader
	ViewForm
	ViewHelp
)

type eventMsg struct {
	event event.Event
}

type eventsClosedMsg struct{}

type selectedMsg struct {
	sel *sync.Selection
	err error
}

type accountResultMsg struct {
	err error
}

type deletedMsg struct {
	id  string
	err error
}

type exportedMsg struct {
	path string
	err  error
}

// Model is the root Bubble Tea model.
type Model struct {
	eng    Engine
	log    *zap.Logger
	keys   *keys.KeyMap
	layout Layout

	currentView  ViewState
	previousView ViewState

	inbox  inbox.Model
	reader reader.Model
	form   addressform.Model
	help   helpview.Model

	events <-chan event.Event
	cancel func()

	status    string
	statusErr bool
	busy      bool
	ready     bool
}

// New creates the root model and subscribes to engine events.
func New(eng Engine) Model {
	k := keys.DefaultKeyMap()
	events, cancel := eng.Bus.Subscribe(0)

	var options []addressform.Option
	for _, id := range eng.Registry.IDs() {
		caps, err := eng.Session.Capabilities(id)
		if err != nil {
			continue
		}
		options = append(options, addressform.Option{ID: id, Capabilities: caps})
	}

	m := Model{
		eng:    eng,
		log:    logger.Or(eng.Logger),
		keys:   k,
		layout: NewLayout(80, 24),
		inbox:  inbox.New(k, 80, 22),
		reader: reader.New(k, 80, 22),
		form:   addressform.New(options, 80, 22),
		help:   helpview.New(k, 80, 22),
		events: events,
		cancel: cancel,
	}
	m.reloadInbox()
	return m
}

// Run starts the terminal client and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, eng Engine) error {
	m := New(eng)
	defer m.cancel()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("running terminal client: %w", err)
	}
	return nil
}

// Init waits for the first engine event.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// waitForEvent delivers the next bus event as a tea message.
func waitForEvent(events <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: e}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = NewLayout(msg.Width, msg.Height)
		m.ready = true
		h := m.layout.ContentHeight()
		m.inbox.SetSize(msg.Width, h)
		m.reader.SetSize(msg.Width, h)
		m.form.SetSize(msg.Width, h)
		m.help.SetSize(msg.Width, h)
		return m.updateActiveView(msg)

	case eventMsg:
		cmd := m.handleEvent(msg.event)
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case eventsClosedMsg:
		return m, tea.Quit

	case inbox.OpenMsg:
		m.previousView = ViewInbox
		m.currentView = ViewReader
		m.reader.SetLoading(true)
		return m, m.selectMessage(msg.ID)

	case selectedMsg:
		if msg.err != nil {
			m.currentView = ViewInbox
			m.reader.SetLoading(false)
			m.setError("Could not load message", msg.err)
			return m, nil
		}
		m.reader.SetMessage(msg.sel.Message, msg.sel.Code)
		m.reloadInbox()
		if msg.sel.Code != "" {
			m.setStatus("Code " + msg.sel.Code)
		}
		return m, nil

	case reader.BackMsg:
		m.currentView = ViewInbox
		return m, nil

	case inbox.DeleteMsg:
		return m, m.deleteMessage(msg.ID)

	case reader.DeleteMsg:
		return m, m.deleteMessage(msg.ID)

	case deletedMsg:
		if msg.err != nil {
			m.setError("Delete failed", msg.err)
			return m, nil
		}
		if m.currentView == ViewReader && m.reader.MessageID() == msg.id {
			m.currentView = ViewInbox
		}
		m.reloadInbox()
		m.setStatus("Message deleted")
		return m, nil

	case reader.ExportMsg:
		return m, m.exportMessage(msg.ID)

	case exportedMsg:
		if msg.err != nil {
			m.setError("Export failed", msg.err)
			return m, nil
		}
		m.setStatus("Saved " + msg.path)
		return m, nil

	case addressform.SubmitMsg:
		m.currentView = ViewInbox
		m.busy = true
		m.setStatus("Creating address on " + msg.Provider.DisplayName() + "...")
		return m, m.createAccount(msg)

	case addressform.CancelMsg:
		m.currentView = ViewInbox
		return m, nil

	case accountResultMsg:
		m.busy = false
		if msg.err != nil {
			m.setError("Could not create address", msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		if m.currentView == ViewForm {
			break
		}
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work outside text input.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case msg.String() == "ctrl+c":
		return tea.Quit, true

	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewInbox {
			return tea.Quit, true
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.currentView == ViewInbox {
			m.eng.Sync.Refresh()
			m.setStatus("Checking for mail...")
			return nil, true
		}

	case key.Matches(msg, m.keys.NewAddress):
		if m.currentView == ViewInbox && !m.busy {
			m.previousView = m.currentView
			m.currentView = ViewForm
			return m.form.Start(m.eng.Session.Provider()), true
		}

	case key.Matches(msg, m.keys.Switch):
		if m.currentView == ViewInbox && !m.busy {
			m.busy = true
			next := m.eng.Session.Provider().Next()
			m.setStatus("Switching to " + next.DisplayName() + "...")
			return m.switchProvider(), true
		}

	case key.Matches(msg, m.keys.Link):
		if m.currentView == ViewInbox || m.currentView == ViewReader {
			link, err := m.eng.Session.RecoveryURL(m.eng.RecoveryBaseURL)
			if err != nil {
				m.setError("No recovery link", err)
			} else {
				m.setStatus(link)
			}
			return nil, true
		}
	}
	return nil, false
}

// handleEvent applies an engine event to the views.
func (m *Model) handleEvent(e event.Event) tea.Cmd {
	switch e.Type {
	case event.TypeAccountChanged:
		m.busy = false
		if m.currentView == ViewReader {
			m.currentView = ViewInbox
		}
		m.reloadInbox()
		m.setStatus("Using " + e.Address)

	case event.TypeAccountFailed:
		m.busy = false
		m.statusErr = true
		m.status = "Address creation failed (" + e.Reason + "): " + e.Error

	case event.TypeInboxReplaced, event.TypeHydrated:
		m.reloadInbox()

	case event.TypeNewMail:
		n := len(e.Messages)
		if n == 1 {
			m.setStatus("New mail: " + e.Messages[0].Subject)
		} else {
			m.setStatus(fmt.Sprintf("%d new messages", n))
		}

	case event.TypeSyncFailed:
		m.statusErr = true
		m.status = "Sync failed: " + e.Error
	}
	return nil
}

// updateActiveView dispatches the message to the active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewReader:
		m.reader, cmd = m.reader.Update(msg)
	case ViewForm:
		m.form, cmd = m.form.Update(msg)
	}

	return m, cmd
}

// View renders the frame around the active view.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	address := "no mailbox"
	if acct := m.eng.Session.Current(); acct != nil {
		address = acct.Address
	}
	id := m.eng.Session.Provider()
	header := m.layout.RenderHeader(address, theme.ProviderStyle(id).Render(id.DisplayName()))

	status := m.status
	if status == "" {
		status = m.help.ShortView()
	}

	return m.layout.RenderWithFrame(
		header,
		m.renderContent(),
		m.layout.RenderStatusBar(status, m.statusErr),
	)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewReader:
		return m.reader.View()
	case ViewForm:
		return m.form.View()
	case ViewHelp:
		return m.help.View()
	default:
		return m.inbox.View()
	}
}

func (m *Model) reloadInbox() {
	address := ""
	if acct := m.eng.Sync.Account(); acct != nil {
		address = acct.Address
	}
	m.inbox.SetMessages(address, m.eng.Sync.Messages())
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(prefix string, err error) {
	m.log.Warn(strings.ToLower(prefix), zap.Error(err))
	m.status = prefix + ": " + err.Error()
	m.statusErr = true
}

func (m Model) selectMessage(id string) tea.Cmd {
	syncer := m.eng.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		sel, err := syncer.Select(ctx, id)
		return selectedMsg{sel: sel, err: err}
	}
}

func (m Model) deleteMessage(id string) tea.Cmd {
	syncer := m.eng.Sync
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return deletedMsg{id: id, err: syncer.Delete(ctx, id)}
	}
}

func (m Model) createAccount(req addressform.SubmitMsg) tea.Cmd {
	mgr := m.eng.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err := mgr.CreateAccount(ctx, req.Provider, req.Login)
		return accountResultMsg{err: err}
	}
}

func (m Model) switchProvider() tea.Cmd {
	mgr := m.eng.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err := mgr.SwitchProvider(ctx)
		return accountResultMsg{err: err}
	}
}

// exportMessage writes the hydrated message to ExportDir as .eml.
func (m Model) exportMessage(id string) tea.Cmd {
	syncer := m.eng.Sync
	dir := m.eng.ExportDir
	return func() tea.Msg {
		msg, ok := syncer.Message(id)
		if !ok {
			return exportedMsg{err: sync.ErrNotFound}
		}
		to := ""
		if acct := syncer.Account(); acct != nil {
			to = acct.Address
		}

		path := filepath.Join(dir, fileName(id)+".eml")
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{err: fmt.Errorf("creating %s: %w", path, err)}
		}
		defer f.Close()

		if err := export.WriteEML(f, to, msg, nil); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path}
	}
}

// fileName keeps only characters that are safe in a file name.
func fileName(id string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, id)
	if name == "" {
		return "message"
	}
	return name
}
