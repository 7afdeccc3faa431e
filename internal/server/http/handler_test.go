package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapzz3312/waconsole/internal/credentials"
	"github.com/rapzz3312/waconsole/internal/push"
	"github.com/rapzz3312/waconsole/internal/server/app"
	"github.com/rapzz3312/waconsole/internal/session"
	"github.com/rapzz3312/waconsole/internal/transport"
)

type routerFixture struct {
	router  *gin.Engine
	service *app.ConsoleService
	opener  *mockOpener
}

type mockOpener struct {
	mu      sync.Mutex
	handles []*transport.MockHandle
}

func (o *mockOpener) open(_ context.Context, _ string, _ transport.CredentialSink) (transport.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h := transport.NewMockHandle()
	o.handles = append(o.handles, h)
	return h, nil
}

func (o *mockOpener) last() *transport.MockHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handles[len(o.handles)-1]
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	opener := &mockOpener{}
	rec := push.NewRecorder()
	store := credentials.NewFileStore(t.TempDir())
	reg := session.NewRegistry(opener.open, store, rec, nil)
	t.Cleanup(reg.Close)

	service := app.NewConsoleService(reg, rec, nil)
	hub := push.NewHub(nil)
	t.Cleanup(hub.Close)

	return &routerFixture{
		router:  NewRouter(service, hub, RouterConfig{}),
		service: service,
		opener:  opener,
	}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *routerFixture) pairConnected(t *testing.T, phone string) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/pair", PairRequest{Phone: phone, ChannelID: "chan"})
	require.Equal(t, http.StatusOK, w.Code)
	f.opener.last().Emit(transport.Event{Type: transport.EventConnected})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, info := range f.service.ListSessions() {
			if info.Status == session.StatusConnected {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never connected")
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPairEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/api/pair", PairRequest{Phone: "+62 812-3456-7890", ChannelID: "chan"})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "pairing initiated", resp.Message)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "6281234567890", data["phone"])
}

func TestPairEndpointRejectsInvalidIdentifier(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/api/pair", PairRequest{Phone: "123", ChannelID: "chan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid identifier")
}

func TestPairEndpointRequiresFields(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/api/pair", PairRequest{Phone: "6281234567890"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPairEndpointReportsAlreadyConnected(t *testing.T) {
	f := newRouterFixture(t)
	f.pairConnected(t, "6281234567890")

	w := f.do(t, http.MethodPost, "/api/pair", PairRequest{Phone: "6281234567890", ChannelID: "chan"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "already connected", resp.Message)
}

func TestExecuteEndpointAgainstMissingSession(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodPost, "/api/execute", ExecuteRequest{
		Phone:     "6281234567890",
		Target:    "6289999999999",
		Script:    "async function run(cap, target) { return 1 }",
		Loop:      1,
		ChannelID: "chan",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Contains(t, resp.Error, "no session")
}

func TestExecuteEndpointRunsLoop(t *testing.T) {
	f := newRouterFixture(t)
	f.pairConnected(t, "6281234567890")

	w := f.do(t, http.MethodPost, "/api/execute", ExecuteRequest{
		Phone:     "6281234567890",
		Target:    "6289999999999",
		Script:    `async function run(cap, target) { return await cap.sendText(target, "hi") }`,
		Loop:      2,
		ChannelID: "chan",
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	results := data["results"].([]interface{})
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["loop"])
	assert.Equal(t, true, first["success"])
}

func TestExecuteEndpointRejectsMalformedScript(t *testing.T) {
	f := newRouterFixture(t)
	f.pairConnected(t, "6281234567890")

	w := f.do(t, http.MethodPost, "/api/execute", ExecuteRequest{
		Phone:     "6281234567890",
		Target:    "6289999999999",
		Script:    "not a script",
		Loop:      1,
		ChannelID: "chan",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisconnectEndpointIsIdempotent(t *testing.T) {
	f := newRouterFixture(t)
	f.pairConnected(t, "6281234567890")

	w := f.do(t, http.MethodPost, "/api/disconnect", DisconnectRequest{Phone: "6281234567890"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Second call with no session left still succeeds.
	w = f.do(t, http.MethodPost, "/api/disconnect", DisconnectRequest{Phone: "6281234567890"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDisconnectByPathEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.pairConnected(t, "6281234567890")

	w := f.do(t, http.MethodDelete, "/api/sessions/6281234567890", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.service.ListSessions())
}

func TestListSessionsEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.pairConnected(t, "6281234567890")

	w := f.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	sessions := data["sessions"].([]interface{})
	require.Len(t, sessions, 1)
	entry := sessions[0].(map[string]interface{})
	assert.Equal(t, "6281234567890", entry["phone"])
	assert.Equal(t, "connected", entry["status"])
}

func TestHealthEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
