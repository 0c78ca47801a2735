package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/theme"
)

// Item wraps a message so it can be used in a bubbles/list.
type Item struct {
	Message model.Message
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Message.Subject + " " + i.Message.From }

// Title returns the subject, or a placeholder for empty subjects.
func (i Item) Title() string {
	if strings.TrimSpace(i.Message.Subject) == "" {
		return "(no subject)"
	}
	return i.Message.Subject
}

// Description returns the sender and age of the message.
func (i Item) Description() string {
	return i.Message.From + " | " + relativeTime(i.Message.Timestamp, time.Now())
}

// Delegate implements list.ItemDelegate for inbox rows.
type Delegate struct{}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages.
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single inbox row: unread marker, sender, subject, age.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	msg := it.Message

	marker := " "
	if !msg.IsRead {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	}

	from := truncate(msg.From, 28)
	age := theme.DimmedStyle.Render(relativeTime(msg.Timestamp, time.Now()))

	line := fmt.Sprintf("%s %-28s  %s  %s", marker, from, it.Title(), age)
	if msg.IsRead {
		line = theme.DimmedStyle.Render(line)
	} else {
		line = theme.UnreadStyle.Render(line)
	}

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime renders an epoch-millisecond timestamp relative to now.
func relativeTime(ms int64, now time.Time) string {
	if ms <= 0 {
		return ""
	}

	d := now.Sub(time.UnixMilli(ms))
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
