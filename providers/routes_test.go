package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/orchestra-mcp/relay/config"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/hub/hubtest"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, mutate func(*config.RelayConfig)) (*RelayProvider, *store.Memory) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	mem := store.NewMemory()
	p := NewRelayProvider(cfg, zerolog.Nop(), WithStore(mem))
	require.NoError(t, p.Activate(context.Background()))
	t.Cleanup(func() { _ = p.Deactivate() })
	return p, mem
}

func doRequest(t *testing.T, p *RelayProvider, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func joinedClient(t *testing.T, p *RelayProvider, id, userID string) *hub.Client {
	t.Helper()
	h := p.Service().Hub()
	c := hub.NewClient(id, hubtest.NewConn(), h)
	require.True(t, h.Connect(c))
	h.Register(userID, c)
	return c
}

func TestHealth(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	code, body := doRequest(t, p, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestInfo(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	joinedClient(t, p, "c1", "u1")

	code, body := doRequest(t, p, http.MethodGet, "/api/relay/info", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/ws", body["endpoint"])
	assert.Equal(t, float64(1), body["clients"])
	assert.Equal(t, float64(1), body["users"])
	assert.Equal(t, "global", body["scope"])
	assert.Equal(t, "memory", body["store"])
}

func TestPostMessageBroadcastsAndPersists(t *testing.T) {
	p, mem := newTestProvider(t, nil)
	c := joinedClient(t, p, "c1", "u1")

	code, body := doRequest(t, p, http.MethodPost, "/api/channels/general/messages", `{"userId":"u1","content":"hello"}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "general", body["channelId"])
	assert.Equal(t, "text", body["messageType"])
	assert.NotEmpty(t, body["id"])

	assert.Equal(t, 1, mem.Count("general"))
	require.Len(t, c.Send, 1)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(<-c.Send, &frame))
	assert.Equal(t, "new_message", frame["type"])
}

func TestPostMessageValidation(t *testing.T) {
	p, mem := newTestProvider(t, nil)

	code, body := doRequest(t, p, http.MethodPost, "/api/channels/general/messages", `{"content":"no user"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok, body)
	assert.Contains(t, fields, "userId")

	code, _ = doRequest(t, p, http.MethodPost, "/api/channels/general/messages", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, p, http.MethodPost, "/api/channels/general/messages", "")
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Equal(t, 0, mem.Count("general"))
}

func TestHistory(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	for _, content := range []string{"a", "b", "c"} {
		code, _ := doRequest(t, p, http.MethodPost, "/api/channels/general/messages", `{"userId":"u1","content":"`+content+`"}`)
		require.Equal(t, http.StatusCreated, code)
	}

	code, body := doRequest(t, p, http.MethodGet, "/api/channels/general/messages?limit=2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["count"])
	msgs := body["messages"].([]any)
	assert.Equal(t, "c", msgs[0].(map[string]any)["content"])

	code, _ = doRequest(t, p, http.MethodGet, "/api/channels/general/messages?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStartCallOverHTTP(t *testing.T) {
	p, mem := newTestProvider(t, nil)
	c := joinedClient(t, p, "c1", "u1")

	code, body := doRequest(t, p, http.MethodPost, "/api/channels/general/calls", `{"userId":"u1","callType":"audio"}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "audio", body["callType"])
	assert.NotEmpty(t, body["callId"])
	assert.Len(t, c.Send, 1)
	assert.Equal(t, 0, mem.Count("general"))

	code, _ = doRequest(t, p, http.MethodPost, "/api/channels/general/calls", `{"userId":"u1","callType":"hologram"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminRoutes(t *testing.T) {
	p, _ := newTestProvider(t, func(cfg *config.RelayConfig) { cfg.Scope = "channel" })
	c := joinedClient(t, p, "c1", "u1")
	require.True(t, p.Service().Hub().Join("general", c))

	code, body := doRequest(t, p, http.MethodGet, "/api/relay/clients", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, body = doRequest(t, p, http.MethodGet, "/api/relay/channels", "")
	assert.Equal(t, http.StatusOK, code)
	channels := body["channels"].([]any)
	require.Len(t, channels, 1)
	assert.Equal(t, "general", channels[0].(map[string]any)["channel"])

	code, body = doRequest(t, p, http.MethodGet, "/api/relay/clients/c1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u1", body["user_id"])
	assert.Equal(t, []any{"general"}, body["channels"])

	code, _ = doRequest(t, p, http.MethodGet, "/api/relay/clients/missing", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = doRequest(t, p, http.MethodGet, "/api/users/u1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "c1", body["id"])

	code, _ = doRequest(t, p, http.MethodGet, "/api/users/ghost", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doRequest(t, p, http.MethodPost, "/api/users/u1/frames", `{"type":"notice","text":"hi"}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.JSONEq(t, `{"type":"notice","text":"hi"}`, string(<-c.Send))

	code, _ = doRequest(t, p, http.MethodPost, "/api/users/ghost/frames", `{"type":"notice"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doRequest(t, p, http.MethodPost, "/api/users/u1/frames", `nope`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestActivateBuildsConfiguredStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "relay.db")

	p := NewRelayProvider(cfg, zerolog.Nop())
	require.NoError(t, p.Activate(context.Background()))
	assert.True(t, p.IsActive())

	code, _ := doRequest(t, p, http.MethodPost, "/api/channels/general/messages", `{"userId":"u1","content":"stored"}`)
	assert.Equal(t, http.StatusCreated, code)

	require.NoError(t, p.Deactivate())
	assert.False(t, p.IsActive())
	assert.NoError(t, p.Deactivate())
}

func TestReactivateReopensOwnedStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "relay.db")

	p := NewRelayProvider(cfg, zerolog.Nop())
	require.NoError(t, p.Activate(context.Background()))
	code, _ := doRequest(t, p, http.MethodPost, "/api/channels/general/messages", `{"userId":"u1","content":"before"}`)
	require.Equal(t, http.StatusCreated, code)
	require.NoError(t, p.Deactivate())

	require.NoError(t, p.Activate(context.Background()))
	t.Cleanup(func() { _ = p.Deactivate() })

	code, _ = doRequest(t, p, http.MethodPost, "/api/channels/general/messages", `{"userId":"u1","content":"after"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := doRequest(t, p, http.MethodGet, "/api/channels/general/messages", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["count"])
}

func TestDeactivateLeavesInjectedStoreOpen(t *testing.T) {
	mem := store.NewMemory()
	p := NewRelayProvider(config.DefaultConfig(), zerolog.Nop(), WithStore(mem))
	require.NoError(t, p.Activate(context.Background()))
	require.NoError(t, p.Deactivate())

	require.NoError(t, p.Activate(context.Background()))
	t.Cleanup(func() { _ = p.Deactivate() })
	code, _ := doRequest(t, p, http.MethodPost, "/api/channels/general/messages", `{"userId":"u1","content":"kept"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, 1, mem.Count("general"))
}

func TestActivateRedisStoreFromEnv(t *testing.T) {
	srv := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", srv.Addr())
	t.Setenv("REDIS_CHAT_PREFIX", "env:")

	cfg := config.DefaultConfig()
	cfg.Store.Driver = config.DriverRedis
	cfg.Store.Redis = nil

	p := NewRelayProvider(cfg, zerolog.Nop())
	require.NoError(t, p.Activate(context.Background()))
	t.Cleanup(func() { _ = p.Deactivate() })

	code, _ := doRequest(t, p, http.MethodPost, "/api/channels/general/messages", `{"userId":"u1","content":"cached"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, srv.Exists("env:channel:general"))
}

func TestActivateRejectsUnknownDriver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = "postgres"

	p := NewRelayProvider(cfg, zerolog.Nop())
	assert.Error(t, p.Activate(context.Background()))
	assert.False(t, p.IsActive())
}
