package guerrilla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/provider"
)

// DefaultBaseURL is the Guerrilla Mail AJAX endpoint.
const DefaultBaseURL = "https://api.guerrillamail.com/ajax.php"

// domains is static; the API assigns the domain itself.
var domains = []string{"guerrillamail.com"}

// Adapter implements provider.Provider for Guerrilla Mail. Every call
// is an AJAX function selected by the f parameter and authorised by the
// session token returned when the address was issued.
type Adapter struct {
	client *provider.Client
}

// NewAdapter creates a Guerrilla Mail adapter talking to baseURL.
func NewAdapter(baseURL string, opts ...provider.ClientOption) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{client: provider.NewClient(baseURL, opts...)}
}

// ID returns the provider identifier for Guerrilla Mail.
func (a *Adapter) ID() model.ProviderID {
	return model.ProviderGuerrilla
}

// Capabilities reports delete support only. Addresses are assigned by
// the provider and attachments are not exposed through the API.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		CustomLogin: false,
		Delete:      true,
		Attachments: false,
	}
}

// Domains returns the static domain list.
func (a *Adapter) Domains(context.Context) []string {
	return append([]string(nil), domains...)
}

// CreateAccount asks the provider for a fresh address and session token.
// The domain argument is ignored.
func (a *Adapter) CreateAccount(
	ctx context.Context,
	_ string,
	customLogin string,
) (*model.Account, error) {
	if customLogin != "" {
		return nil, provider.NewError(
			provider.KindAccountCreation, a.ID(),
			fmt.Errorf("custom login %q: %w", customLogin, provider.ErrUnsupported),
		)
	}

	var resp AddressResponse
	q := url.Values{"f": {"get_email_address"}, "lang": {"en"}}
	if err := a.client.Get(ctx, "", q, "", &resp); err != nil {
		return nil, provider.NewError(
			provider.KindAccountCreation, a.ID(),
			fmt.Errorf("requesting guerrilla address: %w", err),
		)
	}
	if resp.EmailAddr == "" || resp.SIDToken == "" {
		return nil, provider.Errorf(provider.KindAccountCreation, a.ID(), "provider returned no address")
	}

	return &model.Account{
		Address:  resp.EmailAddr,
		Token:    resp.SIDToken,
		Provider: a.ID(),
	}, nil
}

// Messages lists the inbox from the beginning of the sequence.
func (a *Adapter) Messages(
	ctx context.Context,
	account model.Account,
) ([]model.Message, error) {
	if account.Token == "" {
		return nil, &provider.Error{
			Kind: provider.KindSync, Provider: a.ID(), Auth: true,
			Detail: "account has no session token",
		}
	}

	var resp CheckResponse
	q := url.Values{
		"f":         {"check_email"},
		"seq":       {"0"},
		"sid_token": {account.Token},
	}
	if err := a.client.Get(ctx, "", q, "", &resp); err != nil {
		return nil, provider.NewError(
			provider.KindSync, a.ID(),
			fmt.Errorf("checking guerrilla inbox: %w", err),
		)
	}

	messages := make([]model.Message, 0, len(resp.List))
	for _, m := range resp.List {
		messages = append(messages, toMessage(m))
	}
	return messages, nil
}

// MessageContent fetches the HTML body. The API answers false for ids
// it does not know.
func (a *Adapter) MessageContent(
	ctx context.Context,
	account model.Account,
	messageID string,
) (*model.Content, error) {
	q := url.Values{
		"f":         {"fetch_email"},
		"email_id":  {messageID},
		"sid_token": {account.Token},
	}

	var raw json.RawMessage
	if err := a.client.Get(ctx, "", q, "", &raw); err != nil {
		return nil, provider.NewError(
			provider.KindContentFetch, a.ID(),
			fmt.Errorf("fetching guerrilla message %s: %w", messageID, err),
		)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("false")) || bytes.Equal(trimmed, []byte("null")) {
		return nil, provider.Errorf(provider.KindContentFetch, a.ID(), "message %s not found", messageID)
	}

	var mail Mail
	if err := json.Unmarshal(trimmed, &mail); err != nil {
		return nil, provider.NewError(
			provider.KindContentFetch, a.ID(),
			fmt.Errorf("decoding guerrilla message %s: %w", messageID, err),
		)
	}

	return &model.Content{
		Body:        mail.MailBody,
		HTML:        mail.MailBody,
		Attachments: []model.Attachment{},
	}, nil
}

// DeleteMessage deletes a single message and checks that the provider
// confirmed it.
func (a *Adapter) DeleteMessage(
	ctx context.Context,
	account model.Account,
	messageID string,
) error {
	q := url.Values{
		"f":           {"del_email"},
		"email_ids[]": {messageID},
		"sid_token":   {account.Token},
	}

	var resp DeleteResponse
	if err := a.client.Get(ctx, "", q, "", &resp); err != nil {
		return provider.NewError(
			provider.KindDelete, a.ID(),
			fmt.Errorf("deleting guerrilla message %s: %w", messageID, err),
		)
	}

	for _, id := range resp.DeletedIDs {
		if string(id) == messageID {
			return nil
		}
	}
	return provider.Errorf(provider.KindDelete, a.ID(), "provider did not confirm deletion of %s", messageID)
}

// DownloadAttachment is unsupported; the API exposes no attachments.
func (a *Adapter) DownloadAttachment(
	_ context.Context,
	_ model.Account,
	messageID string,
	attachment model.Attachment,
) (*provider.Download, error) {
	return nil, provider.NewError(
		provider.KindDownload, a.ID(),
		fmt.Errorf("attachment %s of message %s: %w", attachment.Filename, messageID, provider.ErrUnsupported),
	)
}

// toMessage converts an inbox entry to a model summary. Timestamps are
// unix seconds and the read flag is "0" or "1".
func toMessage(m MailSummary) model.Message {
	var (
		ts      int64
		display string
	)
	if secs := m.MailTimestamp.Int64(); secs > 0 {
		t := time.Unix(secs, 0)
		ts = t.UnixMilli()
		display = model.FormatDate(t)
	}
	return model.Message{
		ID:        string(m.MailID),
		From:      m.MailFrom,
		Subject:   m.MailSubject,
		Date:      display,
		Timestamp: ts,
		IsRead:    m.MailRead == "1",
	}
}
