// Package addressform asks for the provider and optional login of a
// new mailbox.
package addressform

import (
	"fmt"
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/provider"
	"github.com/nhle/tempvortex/internal/theme"
)

// SubmitMsg carries the requested mailbox.
type SubmitMsg struct {
	Provider model.ProviderID
	Login    string
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

var loginPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// Option describes one selectable provider.
type Option struct {
	ID           model.ProviderID
	Capabilities provider.Capabilities
}

// formBindings lives on the heap so huh's Value pointers survive
// Bubble Tea model copies.
type formBindings struct {
	provider model.ProviderID
	login    string
}

// Model is the new-address form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	options []Option
	width   int
	height  int
}

// New creates the form for the given providers.
func New(options []Option, width, height int) Model {
	return Model{
		fb:      &formBindings{},
		options: options,
		width:   width,
		height:  height,
	}
}

// Start resets the form with current preselected.
func (m *Model) Start(current model.ProviderID) tea.Cmd {
	m.fb.provider = current
	m.fb.login = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		req := SubmitMsg{
			Provider: m.fb.provider,
			Login:    strings.ToLower(strings.TrimSpace(m.fb.login)),
		}
		m.form = nil
		return m, func() tea.Msg { return req }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New Address") + "\n" + m.form.View()
	return lipgloss.NewStyle().Padding(1, 2).Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	opts := make([]huh.Option[model.ProviderID], 0, len(m.options))
	for _, o := range m.options {
		label := o.ID.DisplayName()
		if !o.Capabilities.CustomLogin {
			label += " (random address only)"
		}
		opts = append(opts, huh.NewOption(label, o.ID))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[model.ProviderID]().
				Title("Provider").
				Options(opts...).
				Value(&m.fb.provider),
			huh.NewInput().
				Title("Login").
				Placeholder("leave empty for a random address").
				Value(&m.fb.login).
				Validate(m.validateLogin),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// validateLogin accepts an empty login, or a well-formed one for
// providers that take custom logins.
func (m *Model) validateLogin(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	if !m.customLoginAllowed(m.fb.provider) {
		return fmt.Errorf("%s assigns addresses itself", m.fb.provider.DisplayName())
	}
	if !loginPattern.MatchString(s) {
		return fmt.Errorf("use letters, digits, dots, dashes or underscores")
	}
	return nil
}

func (m *Model) customLoginAllowed(id model.ProviderID) bool {
	for _, o := range m.options {
		if o.ID == id {
			return o.Capabilities.CustomLogin
		}
	}
	return false
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 80)
}

func (m Model) formHeight() int {
	return max(m.height-4, 8)
}
