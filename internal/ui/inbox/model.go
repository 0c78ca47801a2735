// Package inbox renders the message list of the active mailbox.
package inbox

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempvortex/internal/keys"
	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/theme"
)

// OpenMsg is sent when the user opens a message.
type OpenMsg struct {
	ID string
}

// DeleteMsg is sent when the user deletes the focused message.
type DeleteMsg struct {
	ID string
}

// Model is the inbox list view.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	address string
	width   int
	height  int
}

// New creates an empty inbox view.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetMessages replaces the displayed messages, keeping the cursor on
// the same message when it is still present.
func (m *Model) SetMessages(address string, messages []model.Message) tea.Cmd {
	selected := m.SelectedID()
	m.address = address

	items := make([]list.Item, len(messages))
	cursor := 0
	for i, msg := range messages {
		items[i] = Item{Message: msg}
		if msg.ID == selected {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

// SelectedID returns the id of the focused message, or "".
func (m Model) SelectedID() string {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return ""
	}
	return it.Message.ID
}

// Len returns the number of messages shown.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Open):
			if id := m.SelectedID(); id != "" {
				return m, func() tea.Msg { return OpenMsg{ID: id} }
			}
			return m, nil

		case key.Matches(msg, m.keys.Delete):
			if id := m.SelectedID(); id != "" {
				return m, func() tea.Msg { return DeleteMsg{ID: id} }
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the inbox view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.address == "" {
		return style.Render("No mailbox yet.\n\nPress n to create an address.")
	}
	return style.Render("Waiting for mail to\n" + m.address)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
