package transport

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/gridfall/server/internal/config"
	"github.com/gridfall/server/internal/data"
	"github.com/gridfall/server/internal/engine"
	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/terrain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	grid, err := terrain.NewOpen(engine.GridWidth, engine.GridHeight, engine.Haven)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	tables, err := data.LoadResources("")
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	eng := engine.New(config.Defaults().Game, grid, store.NewMemory(), tables,
		zap.NewNop(), rand.New(rand.NewSource(1)))
	srv := httptest.NewServer(NewServer(eng, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, session string, body any) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func registerAgent(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	resp, env := call(t, srv, http.MethodPost, "/v1/register", "", map[string]string{"name": name})
	if resp.StatusCode != http.StatusOK || !env.OK {
		t.Fatalf("register failed: %d %+v", resp.StatusCode, env.Error)
	}
	res := env.Result.(map[string]any)
	session, _ := res["session"].(string)
	if session == "" {
		t.Fatal("no session minted")
	}
	return session
}

func TestRegisterMintsSession(t *testing.T) {
	srv := newTestServer(t)
	session := registerAgent(t, srv, "Ada")

	// The minted session now drives the agent.
	resp, env := call(t, srv, http.MethodGet, "/v1/status", session, nil)
	if resp.StatusCode != http.StatusOK || !env.OK {
		t.Fatalf("status: %d %+v", resp.StatusCode, env.Error)
	}
	agent := env.Result.(map[string]any)["agent"].(map[string]any)
	if agent["name"] != "Ada" {
		t.Fatalf("status agent %+v", agent)
	}
}

func TestRejectionEnvelope(t *testing.T) {
	srv := newTestServer(t)
	session := registerAgent(t, srv, "Ada")

	// No resource under the agent: a structured rejection, not a 500.
	resp, env := call(t, srv, http.MethodPost, "/v1/gather", session, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if env.OK || env.Error == nil || env.Error.Code != engine.CodeNoResource {
		t.Fatalf("envelope %+v", env)
	}
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	resp, env := call(t, srv, http.MethodPost, "/v1/move", "nope",
		map[string]string{"direction": "north"})
	if resp.StatusCode != http.StatusBadRequest || env.Error == nil || env.Error.Code != engine.CodeNotFound {
		t.Fatalf("got %d %+v", resp.StatusCode, env.Error)
	}
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/register", bytes.NewBufferString("{"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestLookAndEvents(t *testing.T) {
	srv := newTestServer(t)
	session := registerAgent(t, srv, "Ada")

	resp, env := call(t, srv, http.MethodGet, "/v1/look", session, nil)
	if resp.StatusCode != http.StatusOK || !env.OK {
		t.Fatalf("look: %d %+v", resp.StatusCode, env.Error)
	}

	resp, env = call(t, srv, http.MethodGet, "/v1/events?kind=registration", "", nil)
	if resp.StatusCode != http.StatusOK || !env.OK {
		t.Fatalf("events: %d %+v", resp.StatusCode, env.Error)
	}
	events := env.Result.([]any)
	if len(events) != 1 {
		t.Fatalf("got %d registration events, want 1", len(events))
	}
}
