// Package reader renders a single hydrated message.
package reader

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/tempvortex/internal/keys"
	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/theme"
)

// BackMsg signals the parent to return to the inbox.
type BackMsg struct{}

// DeleteMsg asks the parent to delete the open message.
type DeleteMsg struct {
	ID string
}

// ExportMsg asks the parent to save the open message as .eml.
type ExportMsg struct {
	ID string
}

// Model is the message reader view.
type Model struct {
	message  *model.Message
	code     string
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a reader view.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// SetMessage shows msg and its extracted code.
func (m *Model) SetMessage(msg model.Message, code string) {
	m.message = &msg
	m.code = code
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetLoading shows the loading placeholder.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// MessageID returns the id of the open message, or "".
func (m Model) MessageID() string {
	if m.message == nil {
		return ""
	}
	return m.message.ID
}

// Code returns the verification code found in the open message.
func (m Model) Code() string {
	return m.code
}

// Update handles messages for the reader view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Delete):
			if id := m.MessageID(); id != "" {
				return m, func() tea.Msg { return DeleteMsg{ID: id} }
			}
			return m, nil

		case key.Matches(msg, m.keys.Export):
			if id := m.MessageID(); id != "" {
				return m, func() tea.Msg { return ExportMsg{ID: id} }
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the reader view.
func (m Model) View() string {
	placeholder := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return placeholder.Render("Loading message...")
	}
	if m.message == nil {
		return placeholder.Render("No message selected")
	}
	return m.viewport.View()
}

func (m Model) renderContent() string {
	if m.message == nil {
		return ""
	}
	msg := m.message

	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	subject := msg.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(no subject)"
	}
	sections = append(sections, titleStyle.Render(subject), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	sections = append(sections,
		fmt.Sprintf("%s  %s", metaStyle.Render("From:"), valStyle.Render(msg.From)),
		fmt.Sprintf("%s  %s", metaStyle.Render("Date:"), valStyle.Render(msg.Date)),
	)

	if m.code != "" {
		sections = append(sections, "", theme.CodeStyle.Render("Code  "+m.code))
	}

	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	body := ""
	if msg.Content != nil {
		body = msg.Content.Text()
	}
	if strings.TrimSpace(body) == "" {
		body = theme.DimmedStyle.Italic(true).Render("Empty message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(body))

	if msg.Content != nil && len(msg.Content.Attachments) > 0 {
		sections = append(sections, "", separator, "",
			titleStyle.Render(fmt.Sprintf("Attachments (%d)", len(msg.Content.Attachments))))
		for _, att := range msg.Content.Attachments {
			size := ""
			if att.Size > 0 {
				size = "  " + metaStyle.Render(humanize.Bytes(uint64(att.Size)))
			}
			sections = append(sections, "  "+att.Filename+size)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the reader dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	if m.message != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
