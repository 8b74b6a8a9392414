package charm

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// HookContext is an immutable snapshot of the environment the Juju unit
// agent sets up for a hook process. It is read once at process start;
// everything that changes during the hook goes through the Backend.
type HookContext struct {
	// UnitName is this unit, e.g. "mlops-libs-charm/0" (JUJU_UNIT_NAME).
	UnitName string

	// AppName is the application part of UnitName, e.g. "mlops-libs-charm".
	AppName string

	// ModelName and ModelUUID identify the hosting model.
	ModelName string
	ModelUUID string

	// CharmDir is the root of the unpacked charm (JUJU_CHARM_DIR).
	// The unit state database lives under this directory.
	CharmDir string

	// HookName is the hook being dispatched, e.g. "k8s-svc-info-relation-changed".
	// Taken from JUJU_DISPATCH_PATH with the "hooks/" prefix stripped,
	// falling back to the legacy JUJU_HOOK_NAME.
	HookName string

	// ContextID is the agent's hook context identifier (JUJU_CONTEXT_ID).
	// Hook tools only work while this is set.
	ContextID string

	// JujuVersion is the agent version, e.g. "3.6.1".
	JujuVersion string

	// RelationName and RelationID are set for relation hooks
	// (JUJU_RELATION, JUJU_RELATION_ID). RelationID is -1 otherwise.
	RelationName string
	RelationID   int

	// RemoteApp, RemoteUnit, and DepartingUnit carry the counterpart
	// identity for relation hooks, when applicable.
	RemoteApp     string
	RemoteUnit    string
	DepartingUnit string

	// Workload is the container name for pebble-ready hooks
	// (JUJU_WORKLOAD_NAME).
	Workload string
}

// ContextFromEnv builds a HookContext from the JUJU_* environment
// variables. It fails when the environment does not look like a hook
// invocation at all (no unit name, or no hook name).
func ContextFromEnv(log zerolog.Logger) (*HookContext, error) {
	hc := &HookContext{
		ModelName:     lookupEnv(log, "JUJU_MODEL_NAME"),
		ModelUUID:     lookupEnv(log, "JUJU_MODEL_UUID"),
		CharmDir:      lookupEnv(log, "JUJU_CHARM_DIR"),
		ContextID:     lookupEnv(log, "JUJU_CONTEXT_ID"),
		JujuVersion:   lookupEnv(log, "JUJU_VERSION"),
		RelationName:  lookupEnv(log, "JUJU_RELATION"),
		RemoteApp:     lookupEnv(log, "JUJU_REMOTE_APP"),
		RemoteUnit:    lookupEnv(log, "JUJU_REMOTE_UNIT"),
		DepartingUnit: lookupEnv(log, "JUJU_DEPARTING_UNIT"),
		Workload:      lookupEnv(log, "JUJU_WORKLOAD_NAME"),
		RelationID:    -1,
	}

	hc.UnitName = lookupEnv(log, "JUJU_UNIT_NAME")
	if hc.UnitName == "" {
		return nil, fmt.Errorf("JUJU_UNIT_NAME is not set")
	}
	app, _, ok := strings.Cut(hc.UnitName, "/")
	if !ok || app == "" {
		return nil, fmt.Errorf("malformed JUJU_UNIT_NAME %q (want app/number)", hc.UnitName)
	}
	hc.AppName = app

	// Modern agents set JUJU_DISPATCH_PATH ("hooks/<name>"); older ones
	// set JUJU_HOOK_NAME directly.
	dispatchPath := lookupEnv(log, "JUJU_DISPATCH_PATH")
	if dispatchPath != "" {
		hc.HookName = strings.TrimPrefix(dispatchPath, "hooks/")
	} else {
		hc.HookName = lookupEnv(log, "JUJU_HOOK_NAME")
	}
	if hc.HookName == "" {
		return nil, fmt.Errorf("neither JUJU_DISPATCH_PATH nor JUJU_HOOK_NAME is set")
	}

	// JUJU_RELATION_ID has the form "<endpoint>:<id>", e.g. "k8s-svc-info:3".
	if raw := lookupEnv(log, "JUJU_RELATION_ID"); raw != "" {
		id, err := ParseRelationID(raw)
		if err != nil {
			return nil, err
		}
		hc.RelationID = id
	}

	return hc, nil
}

// Event builds the Event for this hook from the hook name and the
// relation/workload fields of the context.
func (hc *HookContext) Event() (Event, error) {
	ev, err := ParseHookName(hc.HookName)
	if err != nil {
		return Event{}, err
	}

	if ev.Kind.IsRelation() {
		ev.RelationID = hc.RelationID
		ev.RemoteApp = hc.RemoteApp
		ev.RemoteUnit = hc.RemoteUnit
		ev.DepartingUnit = hc.DepartingUnit
	}
	return ev, nil
}

// ParseRelationID extracts the numeric relation ID from the
// "<endpoint>:<id>" form used by JUJU_RELATION_ID and the relation-ids
// hook tool. The endpoint part is ignored.
func ParseRelationID(s string) (int, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return 0, fmt.Errorf("malformed relation id %q (want endpoint:id)", s)
	}
	id, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed relation id %q: %w", s, err)
	}
	return id, nil
}

// lookupEnv reads an environment variable, tracing where each context
// value came from at trace level.
func lookupEnv(log zerolog.Logger, key string) string {
	value, ok := os.LookupEnv(key)
	if ok && value != "" {
		log.Trace().Str("key", key).Str("value", value).Msg("hook environment")
	}
	return value
}
