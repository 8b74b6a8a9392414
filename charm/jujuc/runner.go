package jujuc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoHookContext reports that the process is not running inside a Juju
// hook invocation, so the hook tools are unavailable.
var ErrNoHookContext = errors.New("not running in a juju hook context")

// ToolError wraps a hook tool failure with the tool's name and whatever it
// printed on stderr.
type ToolError struct {
	// Tool is the hook tool that failed, e.g. "relation-set".
	Tool string

	// Stderr is the tool's trimmed stderr output, possibly empty.
	Stderr string

	// Err is the underlying execution error.
	Err error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

// Unwrap returns the underlying execution error.
func (e *ToolError) Unwrap() error {
	return e.Err
}

// ExecFunc runs a hook tool and returns its stdout and stderr separately.
// Tests substitute this to fake tool output without subprocesses.
type ExecFunc func(ctx context.Context, name string, stdin []byte, args ...string) (stdout, stderr []byte, err error)

// Runner invokes Juju hook tools. It satisfies charm.Backend.
type Runner struct {
	exec ExecFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithExec replaces the subprocess executor, typically with a fake in tests.
func WithExec(fn ExecFunc) Option {
	return func(r *Runner) {
		r.exec = fn
	}
}

// NewRunner creates a Runner bound to the current hook invocation. Without
// a custom executor it requires JUJU_CONTEXT_ID in the environment, since
// the hook tools refuse to run outside a hook; it returns ErrNoHookContext
// when the variable is missing.
func NewRunner(opts ...Option) (*Runner, error) {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.exec == nil {
		if os.Getenv("JUJU_CONTEXT_ID") == "" {
			return nil, ErrNoHookContext
		}
		r.exec = execTool
	}
	return r, nil
}

// execTool runs a real hook tool subprocess, capturing stdout and stderr.
func execTool(ctx context.Context, name string, stdin []byte, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// run invokes a tool and normalizes failures into *ToolError.
func (r *Runner) run(ctx context.Context, name string, stdin []byte, args ...string) ([]byte, error) {
	stdout, stderr, err := r.exec(ctx, name, stdin, args...)
	if err != nil {
		return nil, &ToolError{
			Tool:   name,
			Stderr: strings.TrimSpace(string(stderr)),
			Err:    err,
		}
	}
	return stdout, nil
}

// runJSON invokes a tool with --format=json and decodes its stdout into out.
// A "null" or empty response leaves out untouched.
func (r *Runner) runJSON(ctx context.Context, out any, name string, args ...string) error {
	args = append(args, "--format=json")

	stdout, err := r.run(ctx, name, nil, args...)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%s: decode output: %w", name, err)
	}
	return nil
}
