package onesecmail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/provider"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAdapter(srv.URL + "/api/v1/")
}

func TestDomains(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "getDomainsList", r.URL.Query().Get("action"))
		_, _ = w.Write([]byte(`["esiix.com","wwjmp.com"]`))
	})
	assert.Equal(t, []string{"esiix.com", "wwjmp.com"}, a.Domains(context.Background()))
}

func TestDomainsFallback(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	assert.Equal(t, fallbackDomains, a.Domains(context.Background()))
}

func TestCreateAccount(t *testing.T) {
	a := NewAdapter("http://unused.invalid/")

	acct, err := a.CreateAccount(context.Background(), "1secmail.com", "")
	require.NoError(t, err)
	login, domain, err := acct.SplitAddress()
	require.NoError(t, err)
	assert.Len(t, login, loginLength)
	assert.Equal(t, "1secmail.com", domain)
	assert.Empty(t, acct.Token)
	assert.Equal(t, model.ProviderOneSecMail, acct.Provider)

	acct, err = a.CreateAccount(context.Background(), "1secmail.org", " My.Name ")
	require.NoError(t, err)
	assert.Equal(t, "my.name@1secmail.org", acct.Address)

	_, err = a.CreateAccount(context.Background(), "1secmail.org", "bad login!")
	require.Error(t, err)
	assert.True(t, provider.IsKind(err, provider.KindAccountCreation))
}

func TestMessages(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "getMessages", q.Get("action"))
		assert.Equal(t, "abc", q.Get("login"))
		assert.Equal(t, "1secmail.com", q.Get("domain"))
		_, _ = w.Write([]byte(`[
			{"id":639,"from":"someone@example.com","subject":"Some subject","date":"2018-06-08 14:33:55"},
			{"id":640,"from":"x@example.com","subject":"Bad date","date":"yesterday"}
		]`))
	})

	msgs, err := a.Messages(context.Background(), model.Account{Address: "abc@1secmail.com"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "639", msgs[0].ID)
	assert.Equal(t, "2018-06-08 14:33:55", msgs[0].Date)
	assert.Equal(t, int64(1528468435000), msgs[0].Timestamp)
	assert.False(t, msgs[0].IsRead)
	assert.False(t, msgs[0].Hydrated())
	assert.Zero(t, msgs[1].Timestamp)
}

func TestMessagesFailure(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := a.Messages(context.Background(), model.Account{Address: "abc@1secmail.com"})
	require.Error(t, err)
	assert.True(t, provider.IsKind(err, provider.KindSync))

	_, err = a.Messages(context.Background(), model.Account{Address: "broken"})
	assert.True(t, provider.IsKind(err, provider.KindSync))
}

func TestMessageContent(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "readMessage", q.Get("action"))
		if q.Get("id") != "639" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"id":639,"from":"someone@example.com","subject":"Some subject","date":"2018-06-08 14:33:55",
			"attachments":[{"filename":"iometer.pdf","contentType":"application/pdf","size":47412}],
			"body":"<div>Some message body</div>","textBody":"Some message body","htmlBody":"<div>Some message body</div>"
		}`))
	})
	acct := model.Account{Address: "abc@1secmail.com"}

	c, err := a.MessageContent(context.Background(), acct, "639")
	require.NoError(t, err)
	assert.Equal(t, "Some message body", c.Body)
	assert.Equal(t, "<div>Some message body</div>", c.HTML)
	require.Len(t, c.Attachments, 1)
	assert.Equal(t, "iometer.pdf", c.Attachments[0].ID)
	assert.Equal(t, int64(47412), c.Attachments[0].Size)

	_, err = a.MessageContent(context.Background(), acct, "1")
	require.Error(t, err)
	assert.True(t, provider.IsKind(err, provider.KindContentFetch))
}

func TestDeleteIsNoop(t *testing.T) {
	a := NewAdapter("http://unused.invalid/")
	assert.False(t, a.Capabilities().Delete)
	assert.NoError(t, a.DeleteMessage(context.Background(), model.Account{Address: "a@1secmail.com"}, "1"))
}

func TestDownloadAttachmentURL(t *testing.T) {
	a := NewAdapter("https://www.1secmail.com/api/v1/")

	dl, err := a.DownloadAttachment(context.Background(),
		model.Account{Address: "abc@1secmail.com"}, "639",
		model.Attachment{Filename: "iometer 1.pdf", ContentType: "application/pdf"})
	require.NoError(t, err)
	require.True(t, dl.Remote())

	u, err := url.Parse(dl.URL)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/", u.Path)
	q := u.Query()
	assert.Equal(t, "downloadAttachment", q.Get("action"))
	assert.Equal(t, "abc", q.Get("login"))
	assert.Equal(t, "639", q.Get("id"))
	assert.Equal(t, "iometer 1.pdf", q.Get("file"))
}
