package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempvortex/internal/model"
)

func TestWriteEMLRoundTrip(t *testing.T) {
	msg := model.Message{
		ID:        "m1",
		From:      "Shop <noreply@shop.example>",
		Subject:   "Your receipt",
		Timestamp: 1700000000000,
		Content: &model.Content{
			Body: "Thanks for your order.",
			HTML: "<p>Thanks for your order.</p>",
		},
	}
	files := []File{{
		Attachment: model.Attachment{Filename: "receipt.txt", ContentType: "text/plain"},
		Data:       []byte("total: 10"),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteEML(&buf, "me@1secmail.com", msg, files))

	raw := buf.String()
	assert.Contains(t, raw, "Subject: Your receipt")
	assert.Contains(t, raw, "noreply@shop.example")
	assert.Contains(t, raw, "me@1secmail.com")

	content, err := ReadEML(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Thanks for your order.", strings.TrimSpace(content.Body))
	assert.Equal(t, "<p>Thanks for your order.</p>", strings.TrimSpace(content.HTML))
	require.Len(t, content.Attachments, 1)
	assert.Equal(t, "receipt.txt", content.Attachments[0].Filename)
	assert.Equal(t, int64(len("total: 10")), content.Attachments[0].Size)
}

func TestWriteEMLHTMLOnly(t *testing.T) {
	msg := model.Message{
		ID:      "m2",
		From:    "not an address",
		Subject: "Code",
		Content: &model.Content{HTML: "<b>Code</b> A1B2C9"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEML(&buf, "", msg, nil))

	content, err := ReadEML(buf.Bytes())
	require.NoError(t, err)
	assert.Contains(t, content.Body, "A1B2C9")
	assert.Empty(t, content.Attachments)
}

func TestWriteEMLRequiresContent(t *testing.T) {
	err := WriteEML(&bytes.Buffer{}, "", model.Message{ID: "m3"}, nil)
	assert.ErrorIs(t, err, ErrNotHydrated)
}
