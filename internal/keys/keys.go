package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the terminal inbox.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Open / Back / Quit
	Open key.Binding
	Back key.Binding
	Quit key.Binding

	// Help toggle
	Help key.Binding

	// Inbox
	Refresh key.Binding
	Delete  key.Binding
	Export  key.Binding

	// Mailbox
	NewAddress key.Binding
	Switch     key.Binding
	Link       key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open message"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "check now"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "save .eml"),
		),
		NewAddress: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new address"),
		),
		Switch: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "switch provider"),
		),
		Link: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "recovery link"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Open, k.Refresh, k.NewAddress, k.Switch, k.Help, k.Quit,
	}
}

// FullHelp returns all keybindings grouped by category.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back, k.Quit},
		{k.Refresh, k.Delete, k.Export, k.Help},
		{k.NewAddress, k.Switch, k.Link},
	}
}
