// Package export renders hydrated messages as RFC 5322 .eml files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/tempvortex/internal/model"
)

// ErrNotHydrated is returned for messages whose content was never fetched.
var ErrNotHydrated = errors.New("message content has not been fetched")

// File is an attachment whose bytes are available for embedding.
type File struct {
	model.Attachment
	Data []byte
}

// WriteEML writes msg, addressed to the mailbox to, as a MIME message.
// The plain and HTML bodies become alternative inline parts; files are
// added as attachments.
func WriteEML(w io.Writer, to string, msg model.Message, files []File) error {
	if !msg.Hydrated() {
		return ErrNotHydrated
	}

	var h mail.Header
	h.SetDate(messageTime(msg))
	h.SetSubject(msg.Subject)
	if from, err := mail.ParseAddress(msg.From); err == nil {
		h.SetAddressList("From", []*mail.Address{from})
	} else if msg.From != "" {
		h.Set("From", msg.From)
	}
	if to != "" {
		h.SetAddressList("To", []*mail.Address{{Address: to}})
	}
	h.Set("X-TempVortex-Message-Id", msg.ID)
	if err := h.GenerateMessageID(); err != nil {
		return fmt.Errorf("generating message id: %w", err)
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating mail writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("creating inline part: %w", err)
	}

	body := msg.Content.Body
	if strings.TrimSpace(body) == "" {
		body = msg.Content.Text()
	}
	if err := writeInline(iw, "text/plain", body); err != nil {
		return err
	}
	if msg.Content.HTML != "" {
		if err := writeInline(iw, "text/html", msg.Content.HTML); err != nil {
			return err
		}
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("closing inline part: %w", err)
	}

	for _, f := range files {
		var ah mail.AttachmentHeader
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		ah.Set("Content-Type", ct)
		ah.SetFilename(f.Filename)

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return fmt.Errorf("creating attachment %q: %w", f.Filename, err)
		}
		if _, err := aw.Write(f.Data); err != nil {
			aw.Close()
			return fmt.Errorf("writing attachment %q: %w", f.Filename, err)
		}
		if err := aw.Close(); err != nil {
			return fmt.Errorf("closing attachment %q: %w", f.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing mail writer: %w", err)
	}
	return nil
}

func writeInline(iw *mail.InlineWriter, contentType, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	pw, err := iw.CreatePart(ih)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return pw.Close()
}

func messageTime(msg model.Message) time.Time {
	if msg.Timestamp > 0 {
		return time.UnixMilli(msg.Timestamp)
	}
	return time.Now()
}

// ReadEML parses a MIME message back into its content: the text/plain
// body, the text/html body and attachment metadata.
func ReadEML(raw []byte) (*model.Content, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	content := &model.Content{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading message part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				content.Body = string(body)
			case strings.HasPrefix(contentType, "text/html"):
				content.HTML = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			content.Attachments = append(content.Attachments, model.Attachment{
				ID:          filename,
				Filename:    filename,
				ContentType: contentType,
				Size:        int64(len(body)),
			})
		}
	}

	return content, nil
}
