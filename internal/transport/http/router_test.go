package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempvortex/internal/event"
	"github.com/nhle/tempvortex/internal/model"
	"github.com/nhle/tempvortex/internal/monitoring"
	"github.com/nhle/tempvortex/internal/provider"
	"github.com/nhle/tempvortex/internal/session"
	"github.com/nhle/tempvortex/internal/sync"
	"github.com/nhle/tempvortex/internal/testutil"
)

type env struct {
	router    *gin.Engine
	bus       *event.Bus
	sync      *sync.Synchronizer
	mailtm    *testutil.FakeProvider
	guerrilla *testutil.FakeProvider
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mailtm := testutil.NewFakeProvider(model.ProviderMailTM)
	mailtm.MessagesFunc = func(context.Context, model.Account) ([]model.Message, error) {
		return []model.Message{{ID: "m1", From: "svc@example.com", Subject: "Sign in"}}, nil
	}
	mailtm.ContentFunc = func(context.Context, model.Account, string) (*model.Content, error) {
		return &model.Content{
			Body:        "Your login code: Q7RZ2K",
			Attachments: []model.Attachment{{ID: "a1", Filename: "terms.txt", ContentType: "text/plain"}},
		}, nil
	}
	guerrilla := testutil.NewFakeProvider(model.ProviderGuerrilla)
	guerrilla.Caps = provider.Capabilities{Delete: true}

	reg := testutil.NewRegistry(t, mailtm, guerrilla)
	bus := event.NewBus()
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	syncer := sync.New(reg, bus, sync.WithInterval(time.Hour), sync.WithMetrics(metrics))
	t.Cleanup(syncer.Stop)

	st := testutil.NewTestStore(t)
	mgr := session.NewManager(reg,
		session.WithStore(st),
		session.WithBus(bus),
		session.WithListener(syncer.Reset),
	)

	router := NewRouter(RouterDependencies{
		Session:         mgr,
		Sync:            syncer,
		Registry:        reg,
		Bus:             bus,
		Store:           st,
		Metrics:         metrics,
		Gatherer:        prometheus.NewRegistry(),
		RecoveryBaseURL: "https://tv.example/",
	})

	return &env{router: router, bus: bus, sync: syncer, mailtm: mailtm, guerrilla: guerrilla}
}

func (e *env) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) *ErrorResponse {
	t.Helper()
	var resp struct {
		Data  json.RawMessage `json:"data"`
		Error *ErrorResponse  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.Error
}

func (e *env) createMailTM(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/session", `{"provider":"mailtm","login":"me"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		return len(e.sync.Messages()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCreateSessionAndReadMessage(t *testing.T) {
	e := newEnv(t)
	e.createMailTM(t)

	var sess sessionResponse
	w := e.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &sess)
	require.NotNil(t, sess.Account)
	assert.Equal(t, "me@mailtm.test", sess.Account.Address)
	assert.Equal(t, "Mail.tm", sess.ProviderName)

	var list []model.Message
	w = e.do(t, http.MethodGet, "/api/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "m1", list[0].ID)

	var sel sync.Selection
	w = e.do(t, http.MethodGet, "/api/messages/m1", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &sel)
	assert.Equal(t, "Q7RZ2K", sel.Code)
	assert.True(t, sel.Message.IsRead)
	require.NotNil(t, sel.Message.Content)
	assert.Contains(t, sel.Message.Content.Body, "Q7RZ2K")

	w = e.do(t, http.MethodGet, "/api/messages/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomLoginRejectedIs422(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/session", `{"provider":"guerrilla","login":"mine"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	apiErr := decode(t, w, nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, "account creation", apiErr.Kind)
	assert.Equal(t, "guerrilla", apiErr.Provider)
	assert.Zero(t, e.guerrilla.Calls("CreateAccount"))

	w = e.do(t, http.MethodPost, "/api/session", `{"provider":"hotmail"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNetworkFailureIs502(t *testing.T) {
	e := newEnv(t)
	e.mailtm.CreateFunc = func(context.Context, string, string) (*model.Account, error) {
		return nil, &provider.Error{Kind: provider.KindAccountCreation, Provider: model.ProviderMailTM, Network: true}
	}

	w := e.do(t, http.MethodPost, "/api/session", `{"provider":"mailtm"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	apiErr := decode(t, w, nil)
	assert.True(t, apiErr.Network)
}

func TestDeleteAndDownload(t *testing.T) {
	e := newEnv(t)
	e.createMailTM(t)

	w := e.do(t, http.MethodGet, "/api/messages/m1/attachments/a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "terms.txt")

	w = e.do(t, http.MethodGet, "/api/messages/m1/eml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "message/rfc822", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Subject: Sign in")

	w = e.do(t, http.MethodDelete, "/api/messages/m1", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, e.sync.Messages())
}

func TestRecoverRedirectStripsParams(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/recover?account=ab%40mail.tm&provider=mailtm&token=jwt&lang=en", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/?lang=en", w.Header().Get("Location"))

	var link struct {
		URL string `json:"url"`
	}
	w = e.do(t, http.MethodGet, "/api/session/recovery", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &link)
	assert.True(t, strings.HasPrefix(link.URL, "https://tv.example/?"))
	assert.Contains(t, link.URL, "token=jwt")
}

func TestRecoveryLinkWithoutAccountIs409(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/session/recovery", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProvidersAndHealth(t *testing.T) {
	e := newEnv(t)

	var providers []providerResponse
	w := e.do(t, http.MethodGet, "/api/providers", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &providers)
	require.Len(t, providers, 3)
	assert.False(t, providers[2].Capabilities.CustomLogin)

	var domains []string
	w = e.do(t, http.MethodGet, "/api/providers/mailtm/domains", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &domains)
	assert.Equal(t, []string{"mailtm.test"}, domains)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/providers/aol/domains", "").Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/live", "").Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/api/messages/refresh", "").Code)
}

func TestEventStream(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.bus.Publish(event.New(event.TypeNewMail, &model.Account{Address: "me@mailtm.test"}))
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got event.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, event.TypeNewMail, got.Type)
	assert.Equal(t, "me@mailtm.test", got.Address)
}
