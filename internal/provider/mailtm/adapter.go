package mailtm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/provider"
)

// DefaultBaseURL is the public mail.tm API root.
const DefaultBaseURL = "https://api.mail.tm"

// DefaultRateLimit is the documented request quota per second.
const DefaultRateLimit = 8

const (
	loginLength    = 10
	passwordLength = 20
)

var fallbackDomains = []string{"mail.tm"}

// Adapter implements provider.Provider for mail.tm, a bearer-token REST
// API. Accounts are created with a fresh random password which is
// immediately exchanged for a token; the password is not retained.
type Adapter struct {
	client  *provider.Client
	baseURL string
}

// NewAdapter creates a mail.tm adapter talking to baseURL.
func NewAdapter(baseURL string, opts ...provider.ClientOption) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]provider.ClientOption{provider.WithErrorDetail(errorDetail)}, opts...)
	return &Adapter{
		client:  provider.NewClient(baseURL, opts...),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ID returns the provider identifier for mail.tm.
func (a *Adapter) ID() model.ProviderID {
	return model.ProviderMailTM
}

// Capabilities reports full support.
func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		CustomLogin: true,
		Delete:      true,
		Attachments: true,
	}
}

// Domains returns active domains, or the static fallback.
func (a *Adapter) Domains(ctx context.Context) []string {
	var coll Collection[Domain]
	if err := a.client.Get(ctx, "/domains", nil, "", &coll); err != nil {
		return append([]string(nil), fallbackDomains...)
	}

	domains := make([]string, 0, len(coll.Items))
	for _, d := range coll.Items {
		if d.Domain != "" && d.IsActive {
			domains = append(domains, d.Domain)
		}
	}
	if len(domains) == 0 {
		return append([]string(nil), fallbackDomains...)
	}
	return domains
}

// CreateAccount registers the address and mints a bearer token for it.
func (a *Adapter) CreateAccount(
	ctx context.Context,
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
	}

	password, err := provider.RandomSecret(passwordLength)
	if err != nil {
		return nil, provider.NewError(provider.KindAccountCreation, a.ID(), err)
	}

	creds := Credentials{Address: login + "@" + domain, Password: password}

	var created Account
	if err := a.client.Post(ctx, "/accounts", creds, &created); err != nil {
		return nil, provider.NewError(
			provider.KindAccountCreation, a.ID(),
			fmt.Errorf("creating mail.tm account %s: %w", creds.Address, err),
		)
	}

	var tok TokenResponse
	if err := a.client.Post(ctx, "/token", creds, &tok); err != nil {
		return nil, provider.NewError(
			provider.KindAccountCreation, a.ID(),
			fmt.Errorf("minting mail.tm token for %s: %w", creds.Address, err),
		)
	}
	if tok.Token == "" {
		return nil, provider.Errorf(provider.KindAccountCreation, a.ID(), "token response was empty")
	}

	address := created.Address
	if address == "" {
		address = creds.Address
	}

	return &model.Account{
		Address:    address,
		Token:      tok.Token,
		ExternalID: created.ID,
		Provider:   a.ID(),
	}, nil
}

// Messages lists the first page of messages, newest first.
func (a *Adapter) Messages(
	ctx context.Context,
	account model.Account,
) ([]model.Message, error) {
	if account.Token == "" {
		return nil, &provider.Error{
			Kind: provider.KindSync, Provider: a.ID(), Auth: true,
			Detail: "account has no token",
		}
	}

	var coll Collection[Message]
	q := url.Values{"page": {"1"}}
	if err := a.client.Get(ctx, "/messages", q, account.Token, &coll); err != nil {
		return nil, provider.NewError(
			provider.KindSync, a.ID(),
			fmt.Errorf("fetching mail.tm messages: %w", err),
		)
	}

	messages := make([]model.Message, 0, len(coll.Items))
	for _, m := range coll.Items {
		messages = append(messages, toMessage(m))
	}
	return messages, nil
}

// MessageContent fetches text, html and attachment metadata.
func (a *Adapter) MessageContent(
	ctx context.Context,
	account model.Account,
	messageID string,
) (*model.Content, error) {
	if account.Token == "" {
		return nil, &provider.Error{
			Kind: provider.KindContentFetch, Provider: a.ID(), Auth: true,
			Detail: "account has no token",
		}
	}

	var detail MessageDetail
	path := "/messages/" + url.PathEscape(messageID)
	if err := a.client.Get(ctx, path, nil, account.Token, &detail); err != nil {
		return nil, provider.NewError(
			provider.KindContentFetch, a.ID(),
			fmt.Errorf("fetching mail.tm message %s: %w", messageID, err),
		)
	}

	attachments := make([]model.Attachment, 0, len(detail.Attachments))
	for _, att := range detail.Attachments {
		downloadURL := ""
		if att.DownloadURL != "" {
			downloadURL = a.client.URL(att.DownloadURL, nil)
		}
		attachments = append(attachments, model.Attachment{
			ID:          att.ID,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        att.Size,
			DownloadURL: downloadURL,
		})
	}

	return &model.Content{
		Body:        detail.Text,
		HTML:        strings.Join(detail.HTML, ""),
		Attachments: attachments,
	}, nil
}

// DeleteMessage removes the message server-side.
func (a *Adapter) DeleteMessage(
	ctx context.Context,
	account model.Account,
	messageID string,
) error {
	if account.Token == "" {
		return &provider.Error{
			Kind: provider.KindDelete, Provider: a.ID(), Auth: true,
			Detail: "account has no token",
		}
	}

	err := a.client.Do(ctx, provider.Request{
		Method: http.MethodDelete,
		Path:   "/messages/" + url.PathEscape(messageID),
		Token:  account.Token,
	}, nil)
	if err != nil {
		return provider.NewError(
			provider.KindDelete, a.ID(),
			fmt.Errorf("deleting mail.tm message %s: %w", messageID, err),
		)
	}
	return nil
}

// DownloadAttachment fetches the attachment bytes with the bearer
// token; the download URL is not usable without it.
func (a *Adapter) DownloadAttachment(
	ctx context.Context,
	account model.Account,
	messageID string,
	attachment model.Attachment,
) (*provider.Download, error) {
	if account.Token == "" {
		return nil, &provider.Error{
			Kind: provider.KindDownload, Provider: a.ID(), Auth: true,
			Detail: "account has no token",
		}
	}

	path, err := a.attachmentPath(messageID, attachment)
	if err != nil {
		return nil, provider.NewError(provider.KindDownload, a.ID(), err)
	}

	data, header, err := a.client.Raw(ctx, provider.Request{
		Method: http.MethodGet,
		Path:   path,
		Token:  account.Token,
	})
	if err != nil {
		return nil, provider.NewError(
			provider.KindDownload, a.ID(),
			fmt.Errorf("downloading %s from message %s: %w", attachment.Filename, messageID, err),
		)
	}

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = header.Get("Content-Type")
	}

	return &provider.Download{
		Filename:    attachment.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// attachmentPath resolves the API path of an attachment, refusing URLs
// that point outside the configured API root so the bearer token is
// never sent elsewhere.
func (a *Adapter) attachmentPath(messageID string, att model.Attachment) (string, error) {
	if att.DownloadURL == "" {
		return fmt.Sprintf(
			"/messages/%s/attachment/%s",
			url.PathEscape(messageID), url.PathEscape(att.ID),
		), nil
	}
	if strings.HasPrefix(att.DownloadURL, "/") {
		return att.DownloadURL, nil
	}
	if strings.HasPrefix(att.DownloadURL, a.baseURL+"/") {
		return strings.TrimPrefix(att.DownloadURL, a.baseURL), nil
	}
	return "", fmt.Errorf("attachment URL %q is outside %s", att.DownloadURL, a.baseURL)
}

// toMessage converts an API message to a model summary.
func toMessage(m Message) model.Message {
	var ts int64
	created, err := time.Parse(time.RFC3339, m.CreatedAt)
	if err == nil {
		ts = created.UnixMilli()
	}
	return model.Message{
		ID:        m.ID,
		From:      m.From.String(),
		Subject:   m.Subject,
		Date:      model.FormatDate(created),
		Timestamp: ts,
		IsRead:    m.Seen,
	}
}
