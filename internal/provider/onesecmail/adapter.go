package onesecmail

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/provider"
)

// DefaultBaseURL is the public 1secmail API endpoint.
const DefaultBaseURL = "https://www.1secmail.com/api/v1/"

// dateLayout is the format of the date field; values are UTC.
const dateLayout = "2006-01-02 15:04:05"

// loginLength is the length of generated mailbox logins.
const loginLength = 10

// fallbackDomains is served when the domain list cannot be fetched.
var fallbackDomains = []string{"1secmail.com", "1secmail.org", "1secmail.net"}

// Adapter implements provider.Provider for 1secmail. Mailboxes are
// addressed by login and domain alone; there is no credential.
type Adapter struct {
	client *provider.Client
}

// NewAdapter creates a 1secmail adapter talking to baseURL.
func NewAdapter(baseURL string, opts ...provider.ClientOption) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{client: provider.NewClient(baseURL, opts...)}
}

// ID returns the provider identifier for 1secmail.
func (a *Adapter) ID() model.ProviderID {
	return model.ProviderOneSecMail
}

// Capabilities reports custom logins and attachments. The API has no
// delete call.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		CustomLogin: true,
		Delete:      false,
		Attachments: true,
	}
}

// Domains returns the active domain list, or the static fallback.
func (a *Adapter) Domains(ctx context.Context) []string {
	var domains []string
	q := url.Values{"action": {"getDomainsList"}}
	if err := a.client.Get(ctx, "", q, "", &domains); err != nil || len(domains) == 0 {
		return append([]string(nil), fallbackDomains...)
	}
	return domains
}

// CreateAccount builds the address locally; 1secmail mailboxes exist
// implicitly once addressed.
func (a *Adapter) CreateAccount(
	_ context.Context,
	domain string,
	customLogin string,
) (*model.Account, error) {
	if domain == "" {
		return nil, provider.Errorf(provider.KindAccountCreation, a.ID(), "no domain available")
	}

	login := strings.ToLower(strings.TrimSpace(customLogin))
	if login == "" {
		var err error
		login, err = provider.RandomLogin(loginLength)
		if err != nil {
			return nil, provider.NewError(provider.KindAccountCreation, a.ID(), err)
		}
	} else if !validLogin(login) {
		return nil, provider.Errorf(
			provider.KindAccountCreation, a.ID(),
			"login %q may only contain letters, digits, dots, dashes and underscores", customLogin,
		)
	}

	return &model.Account{
		Address:  login + "@" + domain,
		Provider: a.ID(),
	}, nil
}

// Messages lists message summaries for the mailbox.
func (a *Adapter) Messages(
	ctx context.Context,
	account model.Account,
) ([]model.Message, error) {
	q, err := mailboxQuery("getMessages", account)
	if err != nil {
		return nil, provider.NewError(provider.KindSync, a.ID(), err)
	}

	var summaries []MessageSummary
	if err := a.client.Get(ctx, "", q, "", &summaries); err != nil {
		return nil, provider.NewError(
			provider.KindSync, a.ID(),
			fmt.Errorf("fetching 1secmail messages: %w", err),
		)
	}

	messages := make([]model.Message, 0, len(summaries))
	for _, s := range summaries {
		messages = append(messages, model.Message{
			ID:        strconv.FormatInt(s.ID, 10),
			From:      s.From,
			Subject:   s.Subject,
			Date:      s.Date,
			Timestamp: parseTimestamp(s.Date),
		})
	}
	return messages, nil
}

// MessageContent reads a single message including attachment metadata.
func (a *Adapter) MessageContent(
	ctx context.Context,
	account model.Account,
	messageID string,
) (*model.Content, error) {
	q, err := mailboxQuery("readMessage", account)
	if err != nil {
		return nil, provider.NewError(provider.KindContentFetch, a.ID(), err)
	}
	q.Set("id", messageID)

	var detail MessageDetail
	if err := a.client.Get(ctx, "", q, "", &detail); err != nil {
		return nil, provider.NewError(
			provider.KindContentFetch, a.ID(),
			fmt.Errorf("reading 1secmail message %s: %w", messageID, err),
		)
	}
	// Unknown ids come back as an empty object.
	if detail.ID == 0 {
		return nil, provider.Errorf(provider.KindContentFetch, a.ID(), "message %s not found", messageID)
	}

	body := detail.TextBody
	if body == "" && detail.HTMLBody == "" {
		body = detail.Body
	}

	attachments := make([]model.Attachment, 0, len(detail.Attachments))
	for _, att := range detail.Attachments {
		attachments = append(attachments, model.Attachment{
			ID:          att.Filename,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        att.Size,
		})
	}

	return &model.Content{
		Body:        body,
		HTML:        detail.HTMLBody,
		Attachments: attachments,
	}, nil
}

// DeleteMessage is a no-op: 1secmail offers no delete endpoint and
// messages expire on their own.
func (a *Adapter) DeleteMessage(context.Context, model.Account, string) error {
	return nil
}

// DownloadAttachment returns the public download URL; 1secmail serves
// attachments without credentials.
func (a *Adapter) DownloadAttachment(
	_ context.Context,
	account model.Account,
	messageID string,
	attachment model.Attachment,
) (*provider.Download, error) {
	q, err := mailboxQuery("downloadAttachment", account)
	if err != nil {
		return nil, provider.NewError(provider.KindDownload, a.ID(), err)
	}
	q.Set("id", messageID)
	q.Set("file", attachment.Filename)

	return &provider.Download{
		Filename:    attachment.Filename,
		ContentType: attachment.ContentType,
		URL:         a.client.URL("", q),
	}, nil
}

// mailboxQuery builds the login/domain query shared by mailbox calls.
func mailboxQuery(action string, account model.Account) (url.Values, error) {
	login, domain, err := account.SplitAddress()
	if err != nil {
		return nil, err
	}
	return url.Values{
		"action": {action},
		"login":  {login},
		"domain": {domain},
	}, nil
}

// parseTimestamp converts the provider date to epoch milliseconds,
// returning 0 on malformed input.
func parseTimestamp(s string) int64 {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

func validLogin(login string) bool {
	for _, r := range login {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
