package pebble

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// defaultPingTimeout is the maximum duration to wait for the Pebble
// daemon during a Ping. Pebble answers system-info from memory, so five
// seconds covers even a container under heavy load.
const defaultPingTimeout = 5 * time.Second

// changePollInterval is how often WaitChange re-reads a change that is
// not ready yet.
const changePollInterval = 100 * time.Millisecond

// socketEnv overrides the socket path, mainly for tests and for running
// the client outside a charm container.
const socketEnv = "PEBBLE_SOCKET"

// defaultSocketPath is where the Juju agent mounts the Pebble socket of
// the named workload container.
const defaultSocketPath = "/charm/containers/%s/pebble.socket"

// APIError is a non-2xx response from the Pebble API.
type APIError struct {
	// StatusCode is the HTTP-style status code from the response envelope.
	StatusCode int

	// Message is Pebble's error description.
	Message string
}

// Error satisfies the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("pebble: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to one container's Pebble daemon over its unix socket.
//
// Usage:
//
//	client, err := pebble.NewClient("some-container")
//	if err != nil { /* handle */ }
//	defer client.Close()
//	if err := client.Ping(ctx); err != nil { /* Pebble not up yet */ }
type Client struct {
	http   *http.Client
	socket string
}

// NewClient creates a client for the named container's Pebble daemon.
//
// The socket resolution order is:
//  1. PEBBLE_SOCKET environment variable (used as-is when set)
//  2. /charm/containers/<container>/pebble.socket
//
// The socket must exist on the filesystem; a missing socket means the
// workload container has not started yet. Existence does not guarantee
// the daemon is serving; Ping verifies that.
func NewClient(container string) (*Client, error) {
	socket := os.Getenv(socketEnv)
	if socket == "" {
		if container == "" {
			return nil, fmt.Errorf("pebble: container name required when %s is not set", socketEnv)
		}
		socket = fmt.Sprintf(defaultSocketPath, container)
	}

	if _, err := os.Stat(socket); err != nil {
		return nil, fmt.Errorf("pebble socket not found at %s: %w", socket, err)
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}

	return &Client{
		http:   &http.Client{Transport: transport},
		socket: socket,
	}, nil
}

// Socket returns the resolved socket path this client dials.
func (c *Client) Socket() string {
	return c.socket
}

// Close releases idle connections held by the client.
// It is safe to call multiple times.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// response is the envelope Pebble wraps every API result in.
type response struct {
	Type       string          `json:"type"`
	StatusCode int             `json:"status-code"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result"`
	Change     string          `json:"change"`
}

// do performs one API round trip and decodes the envelope. The host in
// the request URL is a placeholder; routing happens entirely over the
// unix socket.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*response, error) {
	u := url.URL{Scheme: "http", Host: "localhost", Path: path, RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("pebble: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pebble: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("pebble: decode %s response: %w", path, err)
	}

	if envelope.Type == "error" || envelope.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: envelope.StatusCode, Message: envelope.Status}
		var detail struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Result, &detail) == nil && detail.Message != "" {
			apiErr.Message = detail.Message
		}
		return nil, apiErr
	}
	return &envelope, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	envelope, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("pebble: decode %s result: %w", path, err)
	}
	return nil
}

// post sends a JSON body and returns the change ID for async operations
// (empty for sync ones).
func (c *Client) post(ctx context.Context, path string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("pebble: encode %s request: %w", path, err)
	}
	envelope, err := c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return envelope.Change, nil
}

// SystemInfo is the Pebble daemon's identity, from /v1/system-info.
type SystemInfo struct {
	// Version is the Pebble version string.
	Version string `json:"version"`

	// BootID changes every time the daemon restarts.
	BootID string `json:"boot-id"`
}

// SystemInfo fetches the daemon's identity.
func (c *Client) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.get(ctx, "/v1/system-info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Ping verifies the Pebble daemon is reachable and responsive, waiting
// up to defaultPingTimeout. A failed Ping usually means the workload
// container is still starting.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.SystemInfo(pingCtx); err != nil {
		return fmt.Errorf("pebble is not responding on %s: %w", c.socket, err)
	}
	return nil
}

// ServiceState is the runtime state of a Pebble-managed service.
type ServiceState string

const (
	// StateActive means the service is running.
	StateActive ServiceState = "active"

	// StateInactive means the service is not running.
	StateInactive ServiceState = "inactive"

	// StateBackoff means the service exited and Pebble is waiting to
	// restart it.
	StateBackoff ServiceState = "backoff"

	// StateError means the service failed and will not be restarted.
	StateError ServiceState = "error"
)

// ServiceInfo is one service's status, from /v1/services.
type ServiceInfo struct {
	// Name is the service name from the plan.
	Name string `json:"name"`

	// Startup is the startup policy, "enabled" or "disabled".
	Startup string `json:"startup"`

	// Current is the service's runtime state.
	Current ServiceState `json:"current"`
}

// Services returns the status of the named services, or of all plan
// services when no names are given.
func (c *Client) Services(ctx context.Context, names ...string) ([]ServiceInfo, error) {
	query := url.Values{}
	if len(names) > 0 {
		query.Set("names", strings.Join(names, ","))
	}
	var services []ServiceInfo
	if err := c.get(ctx, "/v1/services", query, &services); err != nil {
		return nil, err
	}
	return services, nil
}

// serviceAction posts a lifecycle action and returns the change ID to
// wait on.
func (c *Client) serviceAction(ctx context.Context, action string, services []string) (string, error) {
	payload := struct {
		Action   string   `json:"action"`
		Services []string `json:"services,omitempty"`
	}{Action: action, Services: services}

	changeID, err := c.post(ctx, "/v1/services", payload)
	if err != nil {
		return "", fmt.Errorf("pebble: %s services %v: %w", action, services, err)
	}
	return changeID, nil
}

// Start starts the named services. It returns a change ID; pass it to
// WaitChange to block until the services are up.
func (c *Client) Start(ctx context.Context, services ...string) (string, error) {
	return c.serviceAction(ctx, "start", services)
}

// Stop stops the named services.
func (c *Client) Stop(ctx context.Context, services ...string) (string, error) {
	return c.serviceAction(ctx, "stop", services)
}

// AutoStart starts all services whose startup policy is "enabled".
// Charms typically call this right after pushing their base layer in the
// pebble-ready handler.
func (c *Client) AutoStart(ctx context.Context) (string, error) {
	return c.serviceAction(ctx, "autostart", nil)
}

// AddLayer adds (or, with combine, merges into) the named dynamic layer.
// The layer travels as YAML inside the JSON request.
func (c *Client) AddLayer(ctx context.Context, label string, layer *Layer, combine bool) error {
	layerYAML, err := layer.YAML()
	if err != nil {
		return err
	}
	payload := struct {
		Action  string `json:"action"`
		Label   string `json:"label"`
		Format  string `json:"format"`
		Layer   string `json:"layer"`
		Combine bool   `json:"combine"`
	}{Action: "add", Label: label, Format: "yaml", Layer: string(layerYAML), Combine: combine}

	if _, err := c.post(ctx, "/v1/layers", payload); err != nil {
		return fmt.Errorf("pebble: add layer %q: %w", label, err)
	}
	return nil
}

// Plan returns the effective plan: all layers combined by their override
// policies.
func (c *Client) Plan(ctx context.Context) (*Plan, error) {
	query := url.Values{}
	query.Set("format", "yaml")

	var planYAML string
	if err := c.get(ctx, "/v1/plan", query, &planYAML); err != nil {
		return nil, err
	}
	return ParsePlan([]byte(planYAML))
}

// Change is the state of one asynchronous Pebble operation.
type Change struct {
	// ID is the change identifier returned by the mutating call.
	ID string `json:"id"`

	// Kind names the operation, e.g. "start" or "stop".
	Kind string `json:"kind"`

	// Ready reports whether the change has finished (in success or error).
	Ready bool `json:"ready"`

	// Status is the change's current status, e.g. "Done" or "Error".
	Status string `json:"status"`

	// Err carries the failure description for changes that ended in error.
	Err string `json:"err,omitempty"`
}

// Change fetches the current state of a change.
func (c *Client) Change(ctx context.Context, id string) (*Change, error) {
	var change Change
	if err := c.get(ctx, "/v1/changes/"+id, nil, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

// WaitChange polls a change until it is ready or the context ends.
// A change that finished in error is returned alongside an error carrying
// Pebble's failure description.
func (c *Client) WaitChange(ctx context.Context, id string) (*Change, error) {
	ticker := time.NewTicker(changePollInterval)
	defer ticker.Stop()

	for {
		change, err := c.Change(ctx, id)
		if err != nil {
			return nil, err
		}
		if change.Ready {
			if change.Err != "" {
				return change, fmt.Errorf("pebble: change %s failed: %s", id, change.Err)
			}
			return change, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("pebble: wait for change %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
