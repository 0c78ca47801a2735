package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientURL(t *testing.T) {
	c := NewClient("https://api.example.com/")
	assert.Equal(t, "https://api.example.com/messages", c.URL("/messages", nil))
	assert.Equal(t, "https://api.example.com/?a=1", c.URL("", url.Values{"a": {"1"}}))

	c = NewClient("https://api.example.com/ajax.php?lang=en")
	assert.Equal(t, "https://api.example.com/ajax.php?lang=en&f=x", c.URL("", url.Values{"f": {"x"}}))
}

func TestClientGetDecodesAndSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"name":"inbox"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, NewClient(srv.URL).Get(context.Background(), "/x", nil, "tok", &out))
	assert.Equal(t, "inbox", out.Name)
}

func TestClientRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Do(context.Background(), Request{Path: "/x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, WithMaxRetries(1)).Do(context.Background(), Request{Path: "/x"}, nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestClientStatusErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithErrorDetail(func(b []byte) string { return "detail: " + string(b) }))
	err := c.Post(context.Background(), "/x", map[string]string{"a": "b"}, nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "detail: nope", statusErr.Detail)

	pe := NewError(KindSync, "mailtm", err)
	assert.Equal(t, "detail: nope", pe.Detail)
	assert.False(t, pe.Network)
}

func TestClientNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	err := NewClient(srv.URL, WithTimeout(time.Second)).Do(context.Background(), Request{Path: "/x"}, nil)
	require.Error(t, err)

	pe := NewError(KindAccountCreation, "1secmail", err)
	assert.True(t, pe.Network)
	assert.True(t, IsNetworkError(pe))
	assert.True(t, IsKind(pe, KindAccountCreation))
	assert.False(t, IsKind(pe, KindSync))
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRateLimit(0.001))
	require.NoError(t, c.Do(context.Background(), Request{Path: "/x"}, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Do(ctx, Request{Path: "/x"}, nil)
	require.Error(t, err)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	pe := NewError(KindDelete, "guerrilla", cause)
	assert.ErrorIs(t, pe, cause)
	assert.Equal(t, "guerrilla delete failed: boom", pe.Error())
	assert.Equal(t, "content fetch", KindContentFetch.String())
}

func TestRandomLogin(t *testing.T) {
	a, err := RandomLogin(10)
	require.NoError(t, err)
	b, err := RandomLogin(10)
	require.NoError(t, err)
	assert.Len(t, a, 10)
	assert.Regexp(t, `^[a-z0-9]{10}$`, a)
	assert.NotEqual(t, a, b)

	s, err := RandomSecret(20)
	require.NoError(t, err)
	assert.Len(t, s, 24)
}
