package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempvortex/internal/theme"
)

// Layout manages the header, content and status bar dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout for the given terminal size.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height left between header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 1)
}

// RenderHeader renders the address on the left and the provider badge
// on the right.
func (l Layout) RenderHeader(address, right string) string {
	return l.fill(theme.HeaderStyle, theme.HeaderStyle.Render(address), theme.HeaderStyle.Render(right))
}

// RenderStatusBar renders the status bar. Errors replace the hints.
func (l Layout) RenderStatusBar(text string, isErr bool) string {
	style := theme.StatusBarStyle
	if isErr {
		style = style.Foreground(theme.ColorRed).Bold(true)
	}
	return l.fill(theme.StatusBarStyle, style.Render(text), "")
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// fill pads the gap between left and right with the bar background.
func (l Layout) fill(bar lipgloss.Style, left, right string) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(bar.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}
