package guerrilla

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
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
	return NewAdapter(srv.URL + "/ajax.php")
}

func TestFlexString(t *testing.T) {
	var s MailSummary
	body := `{"mail_id":12345,"mail_timestamp":"1700000000","mail_read":true}`
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	assert.Equal(t, flexString("12345"), s.MailID)
	assert.Equal(t, int64(1700000000), s.MailTimestamp.Int64())
	assert.Equal(t, flexString("1"), s.MailRead)

	require.NoError(t, json.Unmarshal([]byte(`{"mail_id":null,"mail_read":0}`), &s))
	assert.Empty(t, s.MailID)
	assert.Equal(t, flexString("0"), s.MailRead)
	assert.Zero(t, flexString("abc").Int64())
}

func TestCreateAccount(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ajax.php", r.URL.Path)
		assert.Equal(t, "get_email_address", r.URL.Query().Get("f"))
		_, _ = w.Write([]byte(`{"email_addr":"qwerty@guerrillamail.com","sid_token":"sid-1","email_timestamp":1700000000}`))
	})

	acct, err := a.CreateAccount(context.Background(), "guerrillamail.com", "")
	require.NoError(t, err)
	assert.Equal(t, "qwerty@guerrillamail.com", acct.Address)
	assert.Equal(t, "sid-1", acct.Token)
	assert.Equal(t, model.ProviderGuerrilla, acct.Provider)
}

func TestCreateAccountCustomLogin(t *testing.T) {
	a := NewAdapter("http://unused.invalid/ajax.php")

	_, err := a.CreateAccount(context.Background(), "guerrillamail.com", "me")
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrUnsupported))
	assert.True(t, provider.IsKind(err, provider.KindAccountCreation))
	assert.False(t, a.Capabilities().CustomLogin)
}

func TestCreateAccountEmptyResponse(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := a.CreateAccount(context.Background(), "", "")
	require.Error(t, err)
	assert.False(t, provider.IsNetworkError(err))
}

func TestMessages(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "check_email", q.Get("f"))
		assert.Equal(t, "0", q.Get("seq"))
		assert.Equal(t, "sid-1", q.Get("sid_token"))
		_, _ = w.Write([]byte(`{"list":[
			{"mail_id":"7","mail_from":"bank@example.com","mail_subject":"PIN","mail_timestamp":1700000000,"mail_read":"0"},
			{"mail_id":8,"mail_from":"welcome@guerrillamail.com","mail_subject":"Welcome","mail_timestamp":"1700000100","mail_read":1}
		]}`))
	})

	msgs, err := a.Messages(context.Background(), model.Account{Token: "sid-1"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "7", msgs[0].ID)
	assert.Equal(t, int64(1700000000000), msgs[0].Timestamp)
	assert.False(t, msgs[0].IsRead)
	assert.Equal(t, "8", msgs[1].ID)
	assert.True(t, msgs[1].IsRead)
}

func TestMessagesWithoutToken(t *testing.T) {
	a := NewAdapter("http://unused.invalid/ajax.php")

	_, err := a.Messages(context.Background(), model.Account{Address: "x@guerrillamail.com"})
	require.Error(t, err)
	assert.True(t, provider.IsAuthError(err))
}

func TestMessageContent(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("email_id") {
		case "7":
			_, _ = w.Write([]byte(`{"mail_id":"7","mail_body":"<p>PIN 7731</p>"}`))
		default:
			_, _ = w.Write([]byte(`false`))
		}
	})

	content, err := a.MessageContent(context.Background(), model.Account{Token: "sid-1"}, "7")
	require.NoError(t, err)
	assert.Equal(t, "<p>PIN 7731</p>", content.HTML)
	assert.Empty(t, content.Attachments)

	_, err = a.MessageContent(context.Background(), model.Account{Token: "sid-1"}, "99")
	require.Error(t, err)
	assert.True(t, provider.IsKind(err, provider.KindContentFetch))
}

func TestDeleteMessage(t *testing.T) {
	a := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "del_email", q.Get("f"))
		if q.Get("email_ids[]") == "7" {
			_, _ = w.Write([]byte(`{"deleted_ids":[7]}`))
			return
		}
		_, _ = w.Write([]byte(`{"deleted_ids":[]}`))
	})
	acct := model.Account{Token: "sid-1"}

	require.NoError(t, a.DeleteMessage(context.Background(), acct, "7"))

	err := a.DeleteMessage(context.Background(), acct, "8")
	require.Error(t, err)
	assert.True(t, provider.IsKind(err, provider.KindDelete))
}

func TestDownloadUnsupported(t *testing.T) {
	a := NewAdapter("")

	_, err := a.DownloadAttachment(context.Background(), model.Account{}, "7", model.Attachment{Filename: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrUnsupported))
	assert.False(t, a.Capabilities().Attachments)
}
