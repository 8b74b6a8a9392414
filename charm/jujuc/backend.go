package jujuc

import (
	"context"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/charmed-mlops/mlops-libs/charm"
)

var _ charm.Backend = (*Runner)(nil)

// RelationIDs lists the IDs of relations established on an endpoint.
// Juju reports them as "endpoint:N" strings; only the numeric part is kept.
func (r *Runner) RelationIDs(ctx context.Context, endpoint string) ([]int, error) {
	var raw []string
	if err := r.runJSON(ctx, &raw, "relation-ids", endpoint); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(raw))
	for _, s := range raw {
		id, err := charm.ParseRelationID(s)
		if err != nil {
			return nil, fmt.Errorf("relation-ids: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RelationUnits lists the remote unit names participating in a relation.
func (r *Runner) RelationUnits(ctx context.Context, id int) ([]string, error) {
	var units []string
	if err := r.runJSON(ctx, &units, "relation-list", "-r", strconv.Itoa(id)); err != nil {
		return nil, err
	}
	return units, nil
}

// RelationRemoteApp resolves the application on the other side of a relation.
func (r *Runner) RelationRemoteApp(ctx context.Context, id int) (string, error) {
	var app string
	if err := r.runJSON(ctx, &app, "relation-list", "-r", strconv.Itoa(id), "--app"); err != nil {
		return "", err
	}
	return app, nil
}

// RelationGet reads a member's databag on a relation. The member is a unit
// name, or an application name when app is true.
func (r *Runner) RelationGet(ctx context.Context, id int, member string, app bool) (map[string]string, error) {
	args := []string{"-r", strconv.Itoa(id)}
	if app {
		args = append(args, "--app")
	}
	args = append(args, "-", member)

	data := map[string]string{}
	if err := r.runJSON(ctx, &data, "relation-get", args...); err != nil {
		return nil, err
	}
	return data, nil
}

// RelationSet writes keys into the local unit's databag, or the local
// application's databag when app is true. The data is passed to the tool
// as YAML on stdin so values with shell metacharacters survive intact.
// An empty value deletes the key.
func (r *Runner) RelationSet(ctx context.Context, id int, app bool, data map[string]string) error {
	if len(data) == 0 {
		return nil
	}

	payload, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("relation-set: encode data: %w", err)
	}

	args := []string{"-r", strconv.Itoa(id)}
	if app {
		args = append(args, "--app")
	}
	args = append(args, "--file", "-")

	_, err = r.run(ctx, "relation-set", payload, args...)
	return err
}

// IsLeader reports whether this unit currently holds application leadership.
func (r *Runner) IsLeader(ctx context.Context) (bool, error) {
	var leader bool
	if err := r.runJSON(ctx, &leader, "is-leader"); err != nil {
		return false, err
	}
	return leader, nil
}

// ConfigGet reads the full application configuration.
func (r *Runner) ConfigGet(ctx context.Context) (map[string]any, error) {
	cfg := map[string]any{}
	if err := r.runJSON(ctx, &cfg, "config-get"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StatusSet sets the unit status, or the application status when app is
// true. Application status may only be set by the leader; Juju enforces
// that and the tool fails otherwise.
func (r *Runner) StatusSet(ctx context.Context, app bool, kind charm.StatusKind, message string) error {
	var args []string
	if app {
		args = append(args, "--application")
	}
	args = append(args, kind.String(), message)

	_, err := r.run(ctx, "status-set", nil, args...)
	return err
}

// JujuLog forwards a message to the Juju debug log at the given level.
// The message follows "--" so lines starting with dashes are not parsed
// as flags.
func (r *Runner) JujuLog(ctx context.Context, level, message string) error {
	_, err := r.run(ctx, "juju-log", nil, "--log-level", level, "--", message)
	return err
}

// ApplicationVersionSet records the workload version Juju displays for
// the application.
func (r *Runner) ApplicationVersionSet(ctx context.Context, version string) error {
	_, err := r.run(ctx, "application-version-set", nil, version)
	return err
}
