package jujuc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/charmed-mlops/mlops-libs/charm"
)

// fakeExec records every tool invocation and replays canned responses
// keyed by tool name, so backend methods can be tested without
// subprocesses.
type fakeExec struct {
	calls     []toolCall
	responses map[string]execResponse
}

type toolCall struct {
	name  string
	args  []string
	stdin []byte
}

type execResponse struct {
	stdout string
	stderr string
	err    error
}

func (f *fakeExec) fn(_ context.Context, name string, stdin []byte, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, toolCall{name: name, args: args, stdin: stdin})
	resp := f.responses[name]
	return []byte(resp.stdout), []byte(resp.stderr), resp.err
}

// newFakeRunner builds a Runner whose tool invocations are served by the
// returned fakeExec.
func newFakeRunner(t *testing.T, responses map[string]execResponse) (*Runner, *fakeExec) {
	t.Helper()
	f := &fakeExec{responses: responses}
	r, err := NewRunner(WithExec(f.fn))
	require.NoError(t, err)
	return r, f
}

// TestNewRunner verifies hook context detection: without a custom
// executor the runner refuses to exist outside a hook invocation.
func TestNewRunner(t *testing.T) {
	t.Run("outside a hook", func(t *testing.T) {
		t.Setenv("JUJU_CONTEXT_ID", "")
		_, err := NewRunner()
		assert.ErrorIs(t, err, ErrNoHookContext)
	})

	t.Run("inside a hook", func(t *testing.T) {
		t.Setenv("JUJU_CONTEXT_ID", "app/0-install-123")
		r, err := NewRunner()
		require.NoError(t, err)
		assert.NotNil(t, r)
	})

	t.Run("custom executor needs no context", func(t *testing.T) {
		t.Setenv("JUJU_CONTEXT_ID", "")
		_, err := NewRunner(WithExec(func(context.Context, string, []byte, ...string) ([]byte, []byte, error) {
			return nil, nil, nil
		}))
		assert.NoError(t, err)
	})
}

// TestToolError verifies the failure form: the tool name, its trimmed
// stderr, and the execution error, with the original error reachable
// through Unwrap.
func TestToolError(t *testing.T) {
	exitErr := errors.New("exit status 1")
	r, _ := newFakeRunner(t, map[string]execResponse{
		"is-leader": {stderr: "ERROR permission denied\n", err: exitErr},
	})

	_, err := r.IsLeader(context.Background())
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "is-leader", toolErr.Tool)
	assert.Equal(t, "ERROR permission denied", toolErr.Stderr)
	assert.Equal(t, "is-leader: exit status 1: ERROR permission denied", toolErr.Error())
	assert.True(t, errors.Is(err, exitErr))

	// Without stderr the message drops the trailing part.
	bare := &ToolError{Tool: "relation-set", Err: exitErr}
	assert.Equal(t, "relation-set: exit status 1", bare.Error())
}

// TestRelationIDs verifies the "endpoint:N" strings from relation-ids are
// reduced to their numeric IDs, and malformed output is rejected.
func TestRelationIDs(t *testing.T) {
	t.Run("parses ids", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{
			"relation-ids": {stdout: `["k8s-svc-info:0","k8s-svc-info:3"]`},
		})

		ids, err := r.RelationIDs(context.Background(), "k8s-svc-info")
		require.NoError(t, err)
		assert.Equal(t, []int{0, 3}, ids)

		require.Len(t, f.calls, 1)
		assert.Equal(t, []string{"k8s-svc-info", "--format=json"}, f.calls[0].args)
	})

	t.Run("empty endpoint", func(t *testing.T) {
		r, _ := newFakeRunner(t, map[string]execResponse{
			"relation-ids": {stdout: `[]`},
		})

		ids, err := r.RelationIDs(context.Background(), "k8s-svc-info")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("malformed id", func(t *testing.T) {
		r, _ := newFakeRunner(t, map[string]execResponse{
			"relation-ids": {stdout: `["nonsense"]`},
		})

		_, err := r.RelationIDs(context.Background(), "k8s-svc-info")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "relation-ids:")
	})
}

// TestRelationList covers both relation-list forms: unit listing and
// remote application resolution with --app.
func TestRelationList(t *testing.T) {
	t.Run("units", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{
			"relation-list": {stdout: `["remote-app/0","remote-app/1"]`},
		})

		units, err := r.RelationUnits(context.Background(), 4)
		require.NoError(t, err)
		assert.Equal(t, []string{"remote-app/0", "remote-app/1"}, units)
		assert.Equal(t, []string{"-r", "4", "--format=json"}, f.calls[0].args)
	})

	t.Run("remote application", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{
			"relation-list": {stdout: `"remote-app"`},
		})

		app, err := r.RelationRemoteApp(context.Background(), 4)
		require.NoError(t, err)
		assert.Equal(t, "remote-app", app)
		assert.Equal(t, []string{"-r", "4", "--app", "--format=json"}, f.calls[0].args)
	})
}

// TestRelationGet verifies databag reads for units and applications,
// including the empty bag Juju reports as null.
func TestRelationGet(t *testing.T) {
	t.Run("application databag", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{
			"relation-get": {stdout: `{"name":"my-svc","port":"8080"}`},
		})

		data, err := r.RelationGet(context.Background(), 4, "remote-app", true)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"name": "my-svc", "port": "8080"}, data)
		assert.Equal(t, []string{"-r", "4", "--app", "-", "remote-app", "--format=json"}, f.calls[0].args)
	})

	t.Run("unit databag", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{
			"relation-get": {stdout: `{"private-address":"10.0.0.7"}`},
		})

		data, err := r.RelationGet(context.Background(), 4, "remote-app/0", false)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.7", data["private-address"])
		assert.Equal(t, []string{"-r", "4", "-", "remote-app/0", "--format=json"}, f.calls[0].args)
	})

	t.Run("null means empty bag", func(t *testing.T) {
		r, _ := newFakeRunner(t, map[string]execResponse{
			"relation-get": {stdout: "null\n"},
		})

		data, err := r.RelationGet(context.Background(), 4, "remote-app", true)
		require.NoError(t, err)
		assert.NotNil(t, data)
		assert.Empty(t, data)
	})
}

// TestRelationSet verifies the write path: data travels as YAML on stdin
// via --file -, and writing nothing skips the tool call entirely.
func TestRelationSet(t *testing.T) {
	t.Run("application databag via stdin", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{})

		data := map[string]string{"name": "my-svc", "port": "8080"}
		require.NoError(t, r.RelationSet(context.Background(), 7, true, data))

		require.Len(t, f.calls, 1)
		call := f.calls[0]
		assert.Equal(t, "relation-set", call.name)
		assert.Equal(t, []string{"-r", "7", "--app", "--file", "-"}, call.args)

		var sent map[string]string
		require.NoError(t, yaml.Unmarshal(call.stdin, &sent))
		assert.Equal(t, data, sent)
	})

	t.Run("unit databag", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{})

		require.NoError(t, r.RelationSet(context.Background(), 7, false, map[string]string{"k": "v"}))
		assert.Equal(t, []string{"-r", "7", "--file", "-"}, f.calls[0].args)
	})

	t.Run("empty write is a no-op", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{})

		require.NoError(t, r.RelationSet(context.Background(), 7, true, nil))
		assert.Empty(t, f.calls)
	})
}

// TestIsLeader verifies the boolean decode of is-leader.
func TestIsLeader(t *testing.T) {
	for _, output := range []string{"true", "false"} {
		t.Run(output, func(t *testing.T) {
			r, _ := newFakeRunner(t, map[string]execResponse{
				"is-leader": {stdout: output},
			})

			leader, err := r.IsLeader(context.Background())
			require.NoError(t, err)
			assert.Equal(t, output == "true", leader)
		})
	}
}

// TestConfigGet verifies config values keep their JSON types.
func TestConfigGet(t *testing.T) {
	r, _ := newFakeRunner(t, map[string]execResponse{
		"config-get": {stdout: `{"svc-name":"my-svc","svc-port":"8080","debug":true}`},
	})

	cfg, err := r.ConfigGet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "my-svc", cfg["svc-name"])
	assert.Equal(t, "8080", cfg["svc-port"])
	assert.Equal(t, true, cfg["debug"])
}

// TestStatusSet verifies the argument forms for unit and application
// status writes.
func TestStatusSet(t *testing.T) {
	t.Run("unit", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{})

		require.NoError(t, r.StatusSet(context.Background(), false, charm.StatusActive, "serving"))
		assert.Equal(t, []string{"active", "serving"}, f.calls[0].args)
	})

	t.Run("application", func(t *testing.T) {
		r, f := newFakeRunner(t, map[string]execResponse{})

		require.NoError(t, r.StatusSet(context.Background(), true, charm.StatusBlocked, "needs config"))
		assert.Equal(t, []string{"--application", "blocked", "needs config"}, f.calls[0].args)
	})
}

// TestJujuLog verifies the message is shielded behind "--" so dash-leading
// log lines are not parsed as flags.
func TestJujuLog(t *testing.T) {
	r, f := newFakeRunner(t, map[string]execResponse{})

	require.NoError(t, r.JujuLog(context.Background(), "INFO", "--dashes stay intact"))
	require.Len(t, f.calls, 1)
	assert.Equal(t, "juju-log", f.calls[0].name)
	assert.Equal(t, []string{"--log-level", "INFO", "--", "--dashes stay intact"}, f.calls[0].args)
	assert.Nil(t, f.calls[0].stdin)
}

// TestApplicationVersionSet verifies the version is the only argument.
func TestApplicationVersionSet(t *testing.T) {
	r, f := newFakeRunner(t, map[string]execResponse{})

	require.NoError(t, r.ApplicationVersionSet(context.Background(), "1.2.3"))
	assert.Equal(t, "application-version-set", f.calls[0].name)
	assert.Equal(t, []string{"1.2.3"}, f.calls[0].args)
}

// TestRunJSON_DecodeError verifies undecodable tool output names the tool.
func TestRunJSON_DecodeError(t *testing.T) {
	r, _ := newFakeRunner(t, map[string]execResponse{
		"is-leader": {stdout: "not json"},
	})

	_, err := r.IsLeader(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is-leader: decode output")
}

// TestExecTool exercises the real subprocess path with a shell, covering
// stdout, stdin, and stderr capture.
func TestExecTool(t *testing.T) {
	t.Run("captures stdout and stdin", func(t *testing.T) {
		stdout, stderr, err := execTool(context.Background(), "sh", []byte("hello"), "-c", "cat")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(stdout))
		assert.Empty(t, stderr)
	})

	t.Run("captures stderr on failure", func(t *testing.T) {
		stdout, stderr, err := execTool(context.Background(), "sh", nil, "-c", "echo oops >&2; exit 3")
		require.Error(t, err)
		assert.Empty(t, stdout)
		assert.Equal(t, "oops\n", string(stderr))
	})
}
