package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/provider"
)

// FakeProvider is a scriptable provider.Provider. Unset funcs fall back
// to simple in-memory behaviour.
type FakeProvider struct {
	ProviderID model.ProviderID
	Caps       provider.Capabilities
	DomainList []string

	CreateFunc   func(ctx context.Context, domain, login string) (*model.Account, error)
	MessagesFunc func(ctx context.Context, account model.Account) ([]model.Message, error)
	ContentFunc  func(ctx context.Context, account model.Account, id string) (*model.Content, error)
	DeleteFunc   func(ctx context.Context, account model.Account, id string) error
	DownloadFunc func(ctx context.Context, account model.Account, id string, att model.Attachment) (*provider.Download, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeProvider returns a fake for id with every capability enabled
// and a single domain.
func NewFakeProvider(id model.ProviderID) *FakeProvider {
	return &FakeProvider{
		ProviderID: id,
		Caps:       provider.Capabilities{CustomLogin: true, Delete: true, Attachments: true},
		DomainList: []string{string(id) + ".test"},
	}
}

func (f *FakeProvider) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

// Calls returns how many times op was invoked.
func (f *FakeProvider) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeProvider) ID() model.ProviderID { return f.ProviderID }

func (f *FakeProvider) Capabilities() provider.Capabilities { return f.Caps }

func (f *FakeProvider) Domains(ctx context.Context) []string {
	f.record("Domains")
	return f.DomainList
}

func (f *FakeProvider) CreateAccount(ctx context.Context, domain, login string) (*model.Account, error) {
	f.record("CreateAccount")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, domain, login)
	}
	if login == "" {
		login = fmt.Sprintf("user%d", f.Calls("CreateAccount"))
	}
	return &model.Account{
		Address:  login + "@" + domain,
		Token:    "tok-" + login,
		Provider: f.ProviderID,
	}, nil
}

func (f *FakeProvider) Messages(ctx context.Context, account model.Account) ([]model.Message, error) {
	f.record("Messages")
	if f.MessagesFunc != nil {
		return f.MessagesFunc(ctx, account)
	}
	return nil, nil
}

func (f *FakeProvider) MessageContent(ctx context.Context, account model.Account, id string) (*model.Content, error) {
	f.record("MessageContent")
	if f.ContentFunc != nil {
		return f.ContentFunc(ctx, account, id)
	}
	return &model.Content{Body: "body of " + id}, nil
}

func (f *FakeProvider) DeleteMessage(ctx context.Context, account model.Account, id string) error {
	f.record("DeleteMessage")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, account, id)
	}
	return nil
}

func (f *FakeProvider) DownloadAttachment(
	ctx context.Context,
	account model.Account,
	id string,
	att model.Attachment,
) (*provider.Download, error) {
	f.record("DownloadAttachment")
	if f.DownloadFunc != nil {
		return f.DownloadFunc(ctx, account, id, att)
	}
	return &provider.Download{Filename: att.Filename, ContentType: att.ContentType, Data: []byte("data")}, nil
}

// NewRegistry builds a registry from fakes, filling every provider
// without a fake with a default one.
func NewRegistry(t *testing.T, fakes ...*FakeProvider) *provider.Registry {
	t.Helper()

	byID := make(map[model.ProviderID]*FakeProvider, len(fakes))
	for _, f := range fakes {
		byID[f.ProviderID] = f
	}

	adapters := make([]provider.Provider, 0, len(model.ProviderRotation))
	for _, id := range model.ProviderRotation {
		f, ok := byID[id]
		if !ok {
			f = NewFakeProvider(id)
		}
		adapters = append(adapters, f)
	}

	reg, err := provider.NewRegistry(adapters...)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return reg
}
