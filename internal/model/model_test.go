package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderRotation(t *testing.T) {
	assert.Equal(t, ProviderMailTM, ProviderOneSecMail.Next())
	assert.Equal(t, ProviderGuerrilla, ProviderMailTM.Next())
	assert.Equal(t, ProviderOneSecMail, ProviderGuerrilla.Next())
	assert.Equal(t, ProviderOneSecMail, ProviderID("yopmail").Next())

	assert.True(t, ProviderMailTM.Valid())
	assert.False(t, ProviderID("").Valid())
	assert.Equal(t, "Guerrilla Mail", ProviderGuerrilla.DisplayName())
}

func TestSplitAddress(t *testing.T) {
	login, domain, err := Account{Address: "abc@1secmail.com"}.SplitAddress()
	require.NoError(t, err)
	assert.Equal(t, "abc", login)
	assert.Equal(t, "1secmail.com", domain)

	for _, bad := range []string{"", "abc", "@x.com", "abc@", "a@b@c"} {
		_, _, err := Account{Address: bad}.SplitAddress()
		assert.Error(t, err, bad)
	}
}

func TestMessageJSONHydration(t *testing.T) {
	summary := Message{ID: "1", Subject: "hi", Timestamp: 42}
	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"body"`)

	var back Message
	require.NoError(t, json.Unmarshal(data, &back))
	assert.False(t, back.Hydrated())

	full := summary
	full.Content = &Content{Body: "", HTML: "<b>x</b>"}
	data, err = json.Marshal(full)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"body":""`)

	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, back.Hydrated())
	assert.Equal(t, "<b>x</b>", back.Content.HTML)
	assert.Equal(t, "x", back.Content.Text())
}

func TestContentAttachmentLookup(t *testing.T) {
	c := Content{Attachments: []Attachment{
		{ID: "a1", Filename: "one.txt"},
		{ID: "a2", Filename: "two.txt"},
	}}

	att, ok := c.Attachment("a2")
	require.True(t, ok)
	assert.Equal(t, "two.txt", att.Filename)

	att, ok = c.Attachment("one.txt")
	require.True(t, ok)
	assert.Equal(t, "a1", att.ID)

	_, ok = c.Attachment("missing")
	assert.False(t, ok)
}

func TestStripHTML(t *testing.T) {
	in := `<style>p{color:red}</style><p>Your code:</p><p><b>A1B2C9</b> &amp; more</p>`
	assert.Equal(t, "Your code:\nA1B2C9 & more", StripHTML(in))
	assert.Empty(t, StripHTML(""))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "1secmail", cfg.Session.DefaultProvider)
	assert.Equal(t, 8, cfg.Sync.PollIntervalSec)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "https://api.mail.tm", cfg.Providers.For(ProviderMailTM).BaseURL)
	assert.InDelta(t, 8.0, cfg.Providers.MailTM.RateLimit, 0.001)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sync:
  poll_interval_sec: 3
session:
  default_provider: guerrilla
`), 0o600))
	t.Setenv("TEMPVORTEX_STORE_BACKEND", "redis")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Sync.PollIntervalSec)
	assert.Equal(t, "guerrilla", cfg.Session.DefaultProvider)
	assert.Equal(t, "redis", cfg.Store.Backend)
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  default_provider: yopmail\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	cfg.Sync.PollIntervalSec = 15

	path := filepath.Join(dir, "nested", "config.yaml")
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 15, loaded.Sync.PollIntervalSec)
}
