package pebble

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startPebbleServer serves a fake Pebble API over a unix socket in a temp
// directory and points PEBBLE_SOCKET at it, so NewClient("") resolves to
// the fake.
func startPebbleServer(t *testing.T, handler http.Handler) string {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "pebble.socket")
	listener, err := net.Listen("unix", socket)
	require.NoError(t, err)

	server := &http.Server{Handler: handler}
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(func() { _ = server.Close() })

	t.Setenv("PEBBLE_SOCKET", socket)
	return socket
}

// newServedClient wires a client to a fake Pebble serving the given mux.
func newServedClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	startPebbleServer(t, mux)

	client, err := NewClient("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// writeSync responds with a sync result envelope.
func writeSync(t *testing.T, w http.ResponseWriter, result any) {
	t.Helper()
	payload := map[string]any{
		"type":        "sync",
		"status-code": 200,
		"status":      "OK",
		"result":      result,
	}
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

// writeAsync responds with an async envelope carrying a change ID.
func writeAsync(t *testing.T, w http.ResponseWriter, changeID string) {
	t.Helper()
	payload := map[string]any{
		"type":        "async",
		"status-code": 202,
		"status":      "Accepted",
		"change":      changeID,
	}
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

// writeError responds with an error envelope the way Pebble reports
// failures.
func writeError(t *testing.T, w http.ResponseWriter, code int, status, message string) {
	t.Helper()
	payload := map[string]any{
		"type":        "error",
		"status-code": code,
		"status":      status,
	}
	if message != "" {
		payload["result"] = map[string]string{"message": message}
	}
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

// TestNewClient covers socket resolution: the PEBBLE_SOCKET override, the
// per-container default path, and the existence check.
func TestNewClient(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		socket := startPebbleServer(t, http.NewServeMux())

		client, err := NewClient("ignored")
		require.NoError(t, err)
		defer func() { _ = client.Close() }()
		assert.Equal(t, socket, client.Socket())
	})

	t.Run("default path for missing container", func(t *testing.T) {
		t.Setenv("PEBBLE_SOCKET", "")
		_, err := NewClient("some-container")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pebble socket not found at /charm/containers/some-container/pebble.socket")
	})

	t.Run("container name required without override", func(t *testing.T) {
		t.Setenv("PEBBLE_SOCKET", "")
		_, err := NewClient("")
		assert.ErrorContains(t, err, "container name required when PEBBLE_SOCKET is not set")
	})

	t.Run("missing socket file", func(t *testing.T) {
		t.Setenv("PEBBLE_SOCKET", filepath.Join(t.TempDir(), "absent.socket"))
		_, err := NewClient("")
		assert.ErrorContains(t, err, "pebble socket not found")
	})
}

// TestClient_SystemInfo verifies the identity fetch and the Ping built on
// top of it.
func TestClient_SystemInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/system-info", func(w http.ResponseWriter, _ *http.Request) {
		writeSync(t, w, map[string]string{"version": "1.19.0", "boot-id": "boot-1"})
	})
	client := newServedClient(t, mux)

	info, err := client.SystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.19.0", info.Version)
	assert.Equal(t, "boot-1", info.BootID)

	assert.NoError(t, client.Ping(context.Background()))
}

// TestClient_Ping_Unresponsive verifies the error when the socket exists
// but nothing answers on it, the usual state while a workload container
// is still starting.
func TestClient_Ping_Unresponsive(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "pebble.socket")
	require.NoError(t, os.WriteFile(socket, nil, 0o600))
	t.Setenv("PEBBLE_SOCKET", socket)

	client, err := NewClient("")
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = client.Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pebble is not responding on "+socket)
}

// TestClient_Services verifies the name filter lands in the query string
// and the result decodes.
func TestClient_Services(t *testing.T) {
	mux := http.NewServeMux()
	gotNames := make(chan string, 1)
	mux.HandleFunc("/v1/services", func(w http.ResponseWriter, r *http.Request) {
		gotNames <- r.URL.Query().Get("names")
		writeSync(t, w, []map[string]string{
			{"name": "web", "startup": "enabled", "current": "active"},
			{"name": "worker", "startup": "disabled", "current": "inactive"},
		})
	})
	client := newServedClient(t, mux)

	services, err := client.Services(context.Background(), "web", "worker")
	require.NoError(t, err)
	assert.Equal(t, "web,worker", <-gotNames)
	require.Len(t, services, 2)
	assert.Equal(t, "web", services[0].Name)
	assert.Equal(t, StateActive, services[0].Current)
	assert.Equal(t, StateInactive, services[1].Current)
}

// TestClient_ServiceActions verifies start, stop, and autostart post the
// right action and surface the change ID.
func TestClient_ServiceActions(t *testing.T) {
	type actionRequest struct {
		Action   string   `json:"action"`
		Services []string `json:"services"`
	}

	mux := http.NewServeMux()
	gotActions := make(chan actionRequest, 3)
	mux.HandleFunc("/v1/services", func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotActions <- req
		writeAsync(t, w, "41")
	})
	client := newServedClient(t, mux)
	ctx := context.Background()

	changeID, err := client.Start(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "41", changeID)
	assert.Equal(t, actionRequest{Action: "start", Services: []string{"web"}}, <-gotActions)

	_, err = client.Stop(ctx, "web", "worker")
	require.NoError(t, err)
	assert.Equal(t, actionRequest{Action: "stop", Services: []string{"web", "worker"}}, <-gotActions)

	_, err = client.AutoStart(ctx)
	require.NoError(t, err)
	assert.Equal(t, actionRequest{Action: "autostart"}, <-gotActions)
}

// TestClient_AddLayer verifies the layer travels as YAML inside the JSON
// request with its label and combine flag.
func TestClient_AddLayer(t *testing.T) {
	type layersRequest struct {
		Action  string `json:"action"`
		Label   string `json:"label"`
		Format  string `json:"format"`
		Layer   string `json:"layer"`
		Combine bool   `json:"combine"`
	}

	mux := http.NewServeMux()
	gotLayers := make(chan layersRequest, 1)
	mux.HandleFunc("/v1/layers", func(w http.ResponseWriter, r *http.Request) {
		var req layersRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotLayers <- req
		writeSync(t, w, true)
	})
	client := newServedClient(t, mux)

	layer := &Layer{
		Summary: "svc layer",
		Services: map[string]*Service{
			"svc": {Override: OverrideReplace, Command: "/bin/svc", Startup: "enabled"},
		},
	}
	require.NoError(t, client.AddLayer(context.Background(), "base", layer, true))

	req := <-gotLayers
	assert.Equal(t, "add", req.Action)
	assert.Equal(t, "base", req.Label)
	assert.Equal(t, "yaml", req.Format)
	assert.True(t, req.Combine)

	sent, err := ParseLayer([]byte(req.Layer))
	require.NoError(t, err)
	assert.Equal(t, layer, sent)
}

// TestClient_Plan verifies the YAML plan payload decodes into service
// definitions.
func TestClient_Plan(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/plan", func(w http.ResponseWriter, _ *http.Request) {
		writeSync(t, w, "services:\n  web:\n    command: /bin/web\n    startup: enabled\n")
	})
	client := newServedClient(t, mux)

	plan, err := client.Plan(context.Background())
	require.NoError(t, err)
	require.NotNil(t, plan.Services["web"])
	assert.Equal(t, "/bin/web", plan.Services["web"].Command)
}

// TestClient_APIError verifies error envelopes become APIError values,
// preferring the detailed message and falling back to the status line.
func TestClient_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/changes/99", func(w http.ResponseWriter, _ *http.Request) {
		writeError(t, w, 404, "Not Found", `change "99" not found`)
	})
	mux.HandleFunc("/v1/changes/98", func(w http.ResponseWriter, _ *http.Request) {
		writeError(t, w, 500, "Internal Server Error", "")
	})
	client := newServedClient(t, mux)

	_, err := client.Change(context.Background(), "99")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, `change "99" not found`, apiErr.Message)
	assert.Equal(t, `pebble: change "99" not found (status 404)`, apiErr.Error())

	_, err = client.Change(context.Background(), "98")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Internal Server Error", apiErr.Message)
}

// TestClient_WaitChange covers the polling loop: completion after a few
// polls, a change that finished in error, and a context that expires
// while the change is still running.
func TestClient_WaitChange(t *testing.T) {
	t.Run("completes after polling", func(t *testing.T) {
		var polls atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/changes/42", func(w http.ResponseWriter, _ *http.Request) {
			if polls.Add(1) < 3 {
				writeSync(t, w, map[string]any{"id": "42", "kind": "start", "ready": false, "status": "Doing"})
				return
			}
			writeSync(t, w, map[string]any{"id": "42", "kind": "start", "ready": true, "status": "Done"})
		})
		client := newServedClient(t, mux)

		change, err := client.WaitChange(context.Background(), "42")
		require.NoError(t, err)
		assert.True(t, change.Ready)
		assert.Equal(t, "Done", change.Status)
		assert.GreaterOrEqual(t, polls.Load(), int32(3))
	})

	t.Run("change failed", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/changes/43", func(w http.ResponseWriter, _ *http.Request) {
			writeSync(t, w, map[string]any{"id": "43", "ready": true, "status": "Error", "err": "command not found"})
		})
		client := newServedClient(t, mux)

		change, err := client.WaitChange(context.Background(), "43")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pebble: change 43 failed: command not found")
		require.NotNil(t, change)
		assert.Equal(t, "Error", change.Status)
	})

	t.Run("context expires", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/changes/44", func(w http.ResponseWriter, _ *http.Request) {
			writeSync(t, w, map[string]any{"id": "44", "ready": false, "status": "Doing"})
		})
		client := newServedClient(t, mux)

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		_, err := client.WaitChange(ctx, "44")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
