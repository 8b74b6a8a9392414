package charm

import (
	"fmt"
	"strings"
)

// Kind identifies the kind of hook being dispatched. Lifecycle kinds
// match the hook name exactly; relation and pebble-ready kinds are the
// suffix of a hook name that starts with the relation endpoint or the
// workload container name:
//
//	install                          → KindInstall
//	k8s-svc-info-relation-changed    → KindRelationChanged ("k8s-svc-info")
//	some-container-pebble-ready      → KindPebbleReady ("some-container")
type Kind string

const (
	// Lifecycle hooks, in the order Juju emits them over a unit's life.

	// KindInstall fires once when the unit is first set up.
	KindInstall Kind = "install"

	// KindStart fires after install, and again after a host reboot.
	KindStart Kind = "start"

	// KindConfigChanged fires when the application configuration changes,
	// and once after install.
	KindConfigChanged Kind = "config-changed"

	// KindUpdateStatus fires periodically so the charm can refresh its
	// workload status.
	KindUpdateStatus Kind = "update-status"

	// KindUpgradeCharm fires when a new charm revision is deployed.
	KindUpgradeCharm Kind = "upgrade-charm"

	// KindLeaderElected fires on the unit that has just become leader.
	KindLeaderElected Kind = "leader-elected"

	// KindLeaderSettingsChanged fires on non-leader units when the
	// leader changes leadership settings.
	KindLeaderSettingsChanged Kind = "leader-settings-changed"

	// KindStop fires when the unit is about to be destroyed.
	KindStop Kind = "stop"

	// KindRemove fires after stop, as the final hook of a unit's life.
	KindRemove Kind = "remove"

	// Relation hooks. The Event carries the endpoint name and relation ID.

	// KindRelationCreated fires when a relation is first established,
	// before any remote units have joined.
	KindRelationCreated Kind = "relation-created"

	// KindRelationJoined fires once per remote unit joining the relation.
	KindRelationJoined Kind = "relation-joined"

	// KindRelationChanged fires when a remote unit or application writes
	// its relation data bag.
	KindRelationChanged Kind = "relation-changed"

	// KindRelationDeparted fires once per remote unit leaving the relation.
	KindRelationDeparted Kind = "relation-departed"

	// KindRelationBroken fires when the relation itself is removed.
	KindRelationBroken Kind = "relation-broken"

	// KindPebbleReady fires when a workload container's Pebble daemon is
	// up and ready to take service layers. The Event carries the
	// container name.
	KindPebbleReady Kind = "pebble-ready"
)

// lifecycleKinds maps the hook names that are dispatched verbatim,
// without an endpoint or container prefix.
var lifecycleKinds = map[string]Kind{
	"install":                 KindInstall,
	"start":                   KindStart,
	"config-changed":          KindConfigChanged,
	"update-status":           KindUpdateStatus,
	"upgrade-charm":           KindUpgradeCharm,
	"leader-elected":          KindLeaderElected,
	"leader-settings-changed": KindLeaderSettingsChanged,
	"stop":                    KindStop,
	"remove":                  KindRemove,
}

// relationKinds lists the relation hook suffixes. Order matters only
// for documentation; suffix matching is unambiguous because endpoint
// names cannot contain the "-relation-" marker themselves.
var relationKinds = []Kind{
	KindRelationCreated,
	KindRelationJoined,
	KindRelationChanged,
	KindRelationDeparted,
	KindRelationBroken,
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks whether the Kind is one of the predefined hook kinds.
func (k Kind) IsValid() bool {
	if _, ok := lifecycleKinds[string(k)]; ok {
		return true
	}
	if k.IsRelation() || k == KindPebbleReady {
		return true
	}
	return false
}

// IsRelation reports whether the Kind is one of the five relation hook kinds.
func (k Kind) IsRelation() bool {
	switch k {
	case KindRelationCreated, KindRelationJoined, KindRelationChanged,
		KindRelationDeparted, KindRelationBroken:
		return true
	default:
		return false
	}
}

// Event is a single dispatched hook occurrence. Exactly one Event exists
// per charm process; deferred events from earlier dispatches are re-emitted
// before it.
//
// The JSON tags define the persisted form used by the deferral queue.
type Event struct {
	// Kind is the hook kind.
	Kind Kind `json:"kind"`

	// Relation is the endpoint name for relation kinds, empty otherwise.
	Relation string `json:"relation,omitempty"`

	// RelationID is the relation instance ID for relation kinds, -1 otherwise.
	// One endpoint can have several relation instances, one per related
	// application.
	RelationID int `json:"relationId"`

	// RemoteApp is the application on the other end of the relation,
	// when known.
	RemoteApp string `json:"remoteApp,omitempty"`

	// RemoteUnit is the remote unit that triggered a joined/changed/departed
	// hook, when the hook concerns a unit rather than the application.
	RemoteUnit string `json:"remoteUnit,omitempty"`

	// DepartingUnit is the unit leaving the relation in a departed hook.
	DepartingUnit string `json:"departingUnit,omitempty"`

	// Workload is the container name for pebble-ready kinds, empty otherwise.
	Workload string `json:"workload,omitempty"`
}

// HookName returns the Juju hook name for the event, reversing ParseHookName:
// lifecycle kinds map to themselves, relation kinds get the endpoint prefix,
// and pebble-ready gets the container prefix.
func (e Event) HookName() string {
	switch {
	case e.Kind.IsRelation():
		return e.Relation + "-" + string(e.Kind)
	case e.Kind == KindPebbleReady:
		return e.Workload + "-" + string(e.Kind)
	default:
		return string(e.Kind)
	}
}

// Defer returns ErrDefer. Handlers return it to requeue the event:
//
//	func onChanged(ctx context.Context, ev charm.Event) error {
//	    if !ready {
//	        return ev.Defer()
//	    }
//	    ...
//	}
func (e Event) Defer() error {
	return ErrDefer
}

// ParseHookName converts a hook name into an Event. The relation ID,
// remote unit, and other context fields are not known from the name alone;
// HookContext.Event fills those in from the hook environment.
//
// Unrecognized but well-formed hook names return ErrUnknownHook (wrapped
// with the name); an empty name is an error of its own.
func ParseHookName(name string) (Event, error) {
	if name == "" {
		return Event{}, fmt.Errorf("empty hook name")
	}

	if kind, ok := lifecycleKinds[name]; ok {
		return Event{Kind: kind, RelationID: -1}, nil
	}

	// Relation hooks: "<endpoint>-relation-<verb>". The endpoint may itself
	// contain dashes, so match on the suffix and keep the full prefix.
	for _, kind := range relationKinds {
		suffix := "-" + string(kind)
		if endpoint, ok := strings.CutSuffix(name, suffix); ok && endpoint != "" {
			return Event{Kind: kind, Relation: endpoint, RelationID: -1}, nil
		}
	}

	if workload, ok := strings.CutSuffix(name, "-"+string(KindPebbleReady)); ok && workload != "" {
		return Event{Kind: KindPebbleReady, Workload: workload, RelationID: -1}, nil
	}

	return Event{}, fmt.Errorf("%w: %q", ErrUnknownHook, name)
}
