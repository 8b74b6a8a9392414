package charm

import "context"

// Backend is the seam between charm code and the Juju unit agent.
//
// The methods mirror the Juju hook tools one to one. The production
// implementation (charm/jujuc) execs the tools inside a hook context;
// the charmtest package provides an in-memory implementation with the
// same semantics, including leader-gating of application data writes.
type Backend interface {
	// RelationIDs returns the IDs of all relation instances on the named
	// endpoint (relation-ids).
	RelationIDs(ctx context.Context, endpoint string) ([]int, error)

	// RelationUnits returns the remote unit names participating in the
	// relation (relation-list).
	RelationUnits(ctx context.Context, id int) ([]string, error)

	// RelationRemoteApp returns the application on the other end of the
	// relation (relation-list --app).
	RelationRemoteApp(ctx context.Context, id int) (string, error)

	// RelationGet reads the data bag of the named unit, or of the named
	// application when app is true (relation-get).
	RelationGet(ctx context.Context, id int, member string, app bool) (map[string]string, error)

	// RelationSet writes this unit's data bag, or this application's data
	// bag when app is true (relation-set). Setting a key to the empty
	// string deletes it. Application writes require leadership.
	RelationSet(ctx context.Context, id int, app bool, data map[string]string) error

	// IsLeader reports whether this unit is the application leader
	// (is-leader).
	IsLeader(ctx context.Context) (bool, error)

	// ConfigGet returns the application configuration (config-get).
	// Values are strings, booleans, or numbers depending on the option
	// types declared by the charm.
	ConfigGet(ctx context.Context) (map[string]any, error)

	// StatusSet sets the unit workload status, or the application status
	// when app is true (status-set).
	StatusSet(ctx context.Context, app bool, kind StatusKind, message string) error

	// JujuLog forwards a log line to the Juju debug log (juju-log).
	// Level is one of TRACE, DEBUG, INFO, WARNING, ERROR.
	JujuLog(ctx context.Context, level, message string) error

	// ApplicationVersionSet records the workload version shown in
	// `juju status` (application-version-set).
	ApplicationVersionSet(ctx context.Context, version string) error
}
