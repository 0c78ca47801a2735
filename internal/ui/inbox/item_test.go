package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/tempvortex/internal/keys"
	"github.com/nhle/tempvortex/internal/model"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ms := func(d time.Duration) int64 { return now.Add(-d).UnixMilli() }

	assert.Equal(t, "", relativeTime(0, now))
	assert.Equal(t, "just now", relativeTime(ms(10*time.Second), now))
	assert.Equal(t, "5m ago", relativeTime(ms(5*time.Minute), now))
	assert.Equal(t, "3h ago", relativeTime(ms(3*time.Hour), now))
	assert.Equal(t, "2d ago", relativeTime(ms(49*time.Hour), now))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestSetMessagesKeepsCursor(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetMessages("a@b.test", []model.Message{{ID: "1"}, {ID: "2"}})
	m.list.Select(1)
	assert.Equal(t, "2", m.SelectedID())

	m.SetMessages("a@b.test", []model.Message{{ID: "3"}, {ID: "1"}, {ID: "2"}})
	assert.Equal(t, "2", m.SelectedID())
	assert.Equal(t, 3, m.Len())

	assert.Equal(t, "(no subject)", Item{}.Title())
}
