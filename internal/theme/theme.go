package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempvortex/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the top bar showing the active address.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps overlays such as help.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for inbox rows.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the focused inbox row.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// DimmedStyle renders read messages and secondary text.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// UnreadStyle marks messages that have not been opened.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// CodeStyle renders an extracted verification code.
var CodeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorGreen).
	Padding(0, 2)

// ErrorStyle renders failures in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// HelpStyle is used for keyboard shortcut hints.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ProviderStyle returns a color-coded badge style for a provider.
func ProviderStyle(id model.ProviderID) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch id {
	case model.ProviderOneSecMail:
		return base.Foreground(ColorYellow)
	case model.ProviderMailTM:
		return base.Foreground(ColorMagenta)
	case model.ProviderGuerrilla:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}
