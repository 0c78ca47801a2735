package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempvortex/internal/keys"
	"github.com/nhle/tempvortex/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   k,
		help:   h,
		width:  width,
		height: height,
	}
}

// View renders the help overlay.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Keyboard Shortcuts")

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.help.View(m.keys))

	return theme.PanelStyle.
		Width(max(m.width-4, 20)).
		Height(max(m.height-4, 5)).
		Render(content)
}

// ShortView renders the compact hint line used in the status bar.
func (m Model) ShortView() string {
	h := m.help
	h.ShowAll = false
	return h.View(m.keys)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
