package model

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// DisplayLayout is the layout used for Message.Date.
const DisplayLayout = "2006-01-02 15:04:05"

// FormatDate renders t in local time for Message.Date. The zero time
// renders as an empty string.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(DisplayLayout)
}

// Attachment describes a file attached to a message.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`

	// DownloadURL is provider-scoped and may require the account's
	// credential to resolve. Empty when the adapter locates the file by
	// ID and Filename itself.
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Content is the part of a message that is only available after an
// explicit content fetch.
type Content struct {
	Body        string       `json:"body"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments"`
}

// Text returns the plain-text body, falling back to the HTML body with
// markup removed.
func (c Content) Text() string {
	if strings.TrimSpace(c.Body) != "" {
		return c.Body
	}
	return StripHTML(c.HTML)
}

// Attachment looks up an attachment by ID, then by filename.
func (c Content) Attachment(id string) (Attachment, bool) {
	for _, att := range c.Attachments {
		if att.ID == id {
			return att, true
		}
	}
	for _, att := range c.Attachments {
		if att.Filename == id {
			return att, true
		}
	}
	return Attachment{}, false
}

// Message is a mailbox entry. It starts as a summary and becomes
// hydrated once Content is attached.
type Message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`

	// Date is the provider timestamp formatted for display.
	Date string `json:"date"`

	// Timestamp is the provider timestamp in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	IsRead bool `json:"isRead"`

	// Content is nil until the message has been hydrated.
	Content *Content `json:"-"`
}

// Hydrated reports whether the message content has been fetched.
func (m Message) Hydrated() bool {
	return m.Content != nil
}

type messageJSON struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Subject     string       `json:"subject"`
	Date        string       `json:"date"`
	Timestamp   int64        `json:"timestamp"`
	IsRead      bool         `json:"isRead"`
	Body        *string      `json:"body,omitempty"`
	HTML        *string      `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// MarshalJSON flattens hydrated content onto the message, leaving
// body and html absent for summaries.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		ID:        m.ID,
		From:      m.From,
		Subject:   m.Subject,
		Date:      m.Date,
		Timestamp: m.Timestamp,
		IsRead:    m.IsRead,
	}
	if m.Content != nil {
		body, html := m.Content.Body, m.Content.HTML
		out.Body = &body
		out.HTML = &html
		out.Attachments = m.Content.Attachments
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. A message carrying a
// body or html key is treated as hydrated.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Message{
		ID:        in.ID,
		From:      in.From,
		Subject:   in.Subject,
		Date:      in.Date,
		Timestamp: in.Timestamp,
		IsRead:    in.IsRead,
	}
	if in.Body != nil || in.HTML != nil {
		c := &Content{Attachments: in.Attachments}
		if in.Body != nil {
			c.Body = *in.Body
		}
		if in.HTML != nil {
			c.HTML = *in.HTML
		}
		m.Content = c
	}
	return nil
}

var (
	// htmlTagPattern matches HTML tags for stripping.
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

	// htmlBlockPattern matches style and script elements with their contents.
	htmlBlockPattern = regexp.MustCompile(`(?is)<(?:style|script)[^>]*>.*?</(?:style|script)>`)
)

// StripHTML removes HTML tags from a string and collapses whitespace,
// giving a rough plain-text rendering of an HTML body.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := htmlBlockPattern.ReplaceAllString(html, "")
	for _, tag := range []string{"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>", "</tr>"} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
