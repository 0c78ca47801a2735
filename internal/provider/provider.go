package provider

import (
	"context"
	"errors"

	"github.com/nhle/tempvortex/internal/model"
)

// ErrUnsupported is wrapped by operations a provider cannot perform.
var ErrUnsupported = errors.New("operation not supported by provider")

// Capabilities advertises optional features of a provider so callers
// can branch on behaviour rather than on provider identity.
type Capabilities struct {
	// CustomLogin is true when CreateAccount honours a caller-chosen login.
	CustomLogin bool `json:"customLogin"`

	// Delete is true when DeleteMessage removes the message server-side.
	// When false DeleteMessage is a no-op that still succeeds.
	Delete bool `json:"delete"`

	// Attachments is true when messages may carry downloadable attachments.
	Attachments bool `json:"attachments"`
}

// Download is the result of an attachment retrieval. Exactly one of URL
// or Data is set: URL when the provider serves the file without
// credentials, Data when the adapter had to fetch it with the account's
// credential.
type Download struct {
	Filename    string
	ContentType string
	URL         string
	Data        []byte
}

// Remote reports whether the caller must open URL itself.
func (d *Download) Remote() bool {
	return d.URL != "" && d.Data == nil
}

// Provider defines the contract that every mail backend adapter must
// implement. All methods may block on network I/O and honour ctx.
type Provider interface {
	// ID returns the provider identifier.
	ID() model.ProviderID

	// Capabilities returns the optional features this provider supports.
	Capabilities() Capabilities

	// Domains returns the domains new mailboxes can be created on. It
	// never fails: transport errors yield a static fallback list.
	Domains(ctx context.Context) []string

	// CreateAccount provisions a mailbox on domain. An empty customLogin
	// asks the adapter to generate a random one. Rejections are
	// returned as KindAccountCreation errors.
	CreateAccount(
		ctx context.Context,
		domain string,
		customLogin string,
	) (*model.Account, error)

	// Messages lists message summaries for the account. Failures are
	// KindSync errors.
	Messages(ctx context.Context, account model.Account) ([]model.Message, error)

	// MessageContent fetches body, html and attachments for a message.
	// Failures are KindContentFetch errors.
	MessageContent(
		ctx context.Context,
		account model.Account,
		messageID string,
	) (*model.Content, error)

	// DeleteMessage removes a message. Failures are KindDelete errors.
	DeleteMessage(ctx context.Context, account model.Account, messageID string) error

	// DownloadAttachment retrieves an attachment. Failures are
	// KindDownload errors.
	DownloadAttachment(
		ctx context.Context,
		account model.Account,
		messageID string,
		attachment model.Attachment,
	) (*Download, error)
}
