package charmtest

import (
	"context"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charmlog"
	"github.com/charmed-mlops/mlops-libs/internal/statestore"
)

// Harness hosts a charm under test against the in-memory backend.
//
// Construction is two-phase: NewHarness parses the metadata, and Begin
// builds the charm and runs its registration function. Mutations before
// Begin shape the initial model state silently; mutations after Begin
// emit the events Juju would emit for the same change.
type Harness struct {
	t *testing.T

	meta    *charm.Meta
	backend *backend
	store   *statestore.Store

	modelName string
	modelUUID string

	charm *charm.Charm
	begun bool
}

// NewHarness prepares a harness for a charm with the given metadata.yaml
// content. The unit under test is always unit zero of the application the
// metadata names.
func NewHarness(t *testing.T, metaYAML string) *Harness {
	t.Helper()

	meta, err := charm.ParseMeta([]byte(metaYAML))
	require.NoError(t, err, "harness metadata must parse")

	store, err := statestore.OpenMemory()
	require.NoError(t, err, "open in-memory state store")
	t.Cleanup(func() { _ = store.Close() })

	return &Harness{
		t:         t,
		meta:      meta,
		backend:   newBackend(meta.Name+"/0", meta.Name),
		store:     store,
		modelName: "testmodel",
		modelUUID: uuid.NewString(),
	}
}

// SetModelName overrides the model name the charm sees. Must be called
// before Begin.
func (h *Harness) SetModelName(name string) {
	h.t.Helper()
	if h.begun {
		h.t.Fatalf("SetModelName must be called before Begin")
	}
	h.modelName = name
}

// Begin constructs the charm and runs its registration function. Events
// start flowing on the next harness mutation.
func (h *Harness) Begin(register charm.RegisterFunc) {
	h.t.Helper()
	if h.begun {
		h.t.Fatalf("Begin called twice")
	}

	// The charm's log lines land in the fake juju-log, readable via Logs.
	logger := zerolog.New(charmlog.NewSinkWriter(h.backend)).With().
		Str(charmlog.FieldComponent, "charmtest").
		Logger()

	c, err := charm.New(charm.Config{
		Meta:      h.meta,
		Backend:   h.backend,
		State:     h.store,
		Queue:     h.store,
		Logger:    logger,
		UnitName:  h.backend.unitName,
		ModelName: h.modelName,
		ModelUUID: h.modelUUID,
		CharmDir:  h.t.TempDir(),
	})
	require.NoError(h.t, err, "construct charm under test")
	require.NoError(h.t, register(c), "register charm observers")

	h.charm = c
	h.begun = true
}

// Charm returns the charm under test. Only valid after Begin.
func (h *Harness) Charm() *charm.Charm {
	h.t.Helper()
	if !h.begun {
		h.t.Fatalf("Charm called before Begin")
	}
	return h.charm
}

// SetLeader flips this unit's leadership. Gaining leadership after Begin
// emits leader-elected, matching Juju; losing it emits nothing.
func (h *Harness) SetLeader(leader bool) {
	h.t.Helper()
	was := h.backend.leader
	h.backend.leader = leader
	if h.begun && leader && !was {
		h.emit(charm.Event{Kind: charm.KindLeaderElected, RelationID: -1})
	}
}

// UpdateConfig merges changes into the application config. A nil value
// removes the key. After Begin the config-changed event fires.
func (h *Harness) UpdateConfig(changes map[string]any) {
	h.t.Helper()
	for k, v := range changes {
		if v == nil {
			delete(h.backend.config, k)
			continue
		}
		h.backend.config[k] = v
	}
	if h.begun {
		h.emit(charm.Event{Kind: charm.KindConfigChanged, RelationID: -1})
	}
}

// RelationOption adjusts how AddRelation seeds a new relation.
type RelationOption func(*relationOptions)

type relationOptions struct {
	appData  map[string]string
	unitData map[string]string
}

// WithRemoteAppData seeds the remote application's databag. When set,
// AddRelation follows relation-joined with a relation-changed event.
func WithRemoteAppData(data map[string]string) RelationOption {
	return func(o *relationOptions) {
		o.appData = data
	}
}

// WithRemoteUnitData seeds the remote unit's databag. When set,
// AddRelation follows relation-joined with a relation-changed event
// naming that unit.
func WithRemoteUnitData(data map[string]string) RelationOption {
	return func(o *relationOptions) {
		o.unitData = data
	}
}

// AddRelation establishes a relation on the given endpoint with one
// remote unit (<remoteApp>/0) and returns the relation ID. After Begin it
// emits relation-created, relation-joined, and relation-changed when
// remote application data was seeded.
func (h *Harness) AddRelation(endpoint, remoteApp string, opts ...RelationOption) int {
	h.t.Helper()

	if _, _, ok := h.meta.Endpoint(endpoint); !ok {
		h.t.Fatalf("endpoint %q is not declared in metadata", endpoint)
	}

	var options relationOptions
	for _, opt := range opts {
		opt(&options)
	}

	id := h.backend.nextRelID
	h.backend.nextRelID++

	remoteUnit := remoteApp + "/0"
	rel := &relationState{
		id:        id,
		name:      endpoint,
		remoteApp: remoteApp,
		units:     []string{remoteUnit},
		appData:   charm.CloneBag(options.appData),
		unitData:  map[string]map[string]string{remoteUnit: charm.CloneBag(options.unitData)},
	}
	h.backend.relations[id] = rel

	if h.begun {
		h.emit(charm.Event{Kind: charm.KindRelationCreated, Relation: endpoint, RelationID: id, RemoteApp: remoteApp})
		h.emit(charm.Event{Kind: charm.KindRelationJoined, Relation: endpoint, RelationID: id, RemoteApp: remoteApp, RemoteUnit: remoteUnit})
		if len(rel.appData) > 0 {
			h.emit(charm.Event{Kind: charm.KindRelationChanged, Relation: endpoint, RelationID: id, RemoteApp: remoteApp})
		}
		if len(options.unitData) > 0 {
			h.emit(charm.Event{Kind: charm.KindRelationChanged, Relation: endpoint, RelationID: id, RemoteApp: remoteApp, RemoteUnit: remoteUnit})
		}
	}
	return id
}

// UpdateRelationData writes into a member's databag on a relation. The
// member may be the local application or unit (no event, mirroring that
// Juju never notifies a unit of its own writes), the remote application,
// or a remote unit; remote writes emit relation-changed after Begin.
// An empty value deletes the key.
func (h *Harness) UpdateRelationData(id int, member string, data map[string]string) {
	h.t.Helper()

	rel, ok := h.backend.relations[id]
	if !ok {
		h.t.Fatalf("unknown relation id %d", id)
	}

	switch member {
	case h.meta.Name:
		if rel.localAppData == nil {
			rel.localAppData = map[string]string{}
		}
		charm.ApplyBag(rel.localAppData, data)
		return
	case h.backend.unitName:
		if rel.localUnitData == nil {
			rel.localUnitData = map[string]string{}
		}
		charm.ApplyBag(rel.localUnitData, data)
		return
	case rel.remoteApp:
		if rel.appData == nil {
			rel.appData = map[string]string{}
		}
		charm.ApplyBag(rel.appData, data)
		if h.begun {
			h.emit(charm.Event{Kind: charm.KindRelationChanged, Relation: rel.name, RelationID: id, RemoteApp: rel.remoteApp})
		}
		return
	}

	// Remote unit databag. A unit not seen before joins implicitly.
	bag, joined := rel.unitData[member]
	if !joined {
		bag = map[string]string{}
		rel.unitData[member] = bag
		if !slices.Contains(rel.units, member) {
			rel.units = append(rel.units, member)
		}
	}
	charm.ApplyBag(bag, data)
	if h.begun {
		h.emit(charm.Event{Kind: charm.KindRelationChanged, Relation: rel.name, RelationID: id, RemoteApp: rel.remoteApp, RemoteUnit: member})
	}
}

// RelationData returns a copy of a member's databag on a relation.
func (h *Harness) RelationData(id int, member string) map[string]string {
	h.t.Helper()

	rel, ok := h.backend.relations[id]
	if !ok {
		h.t.Fatalf("unknown relation id %d", id)
	}

	switch member {
	case h.meta.Name:
		return charm.CloneBag(rel.localAppData)
	case h.backend.unitName:
		return charm.CloneBag(rel.localUnitData)
	case rel.remoteApp:
		return charm.CloneBag(rel.appData)
	}
	if bag, ok := rel.unitData[member]; ok {
		return charm.CloneBag(bag)
	}
	h.t.Fatalf("relation %d has no member %q", id, member)
	return nil
}

// RemoveRelation tears a relation down. After Begin it emits
// relation-departed for each remote unit and then relation-broken; during
// relation-broken the relation is already gone from the model, matching
// the hook tools' view in a real broken hook.
func (h *Harness) RemoveRelation(id int) {
	h.t.Helper()

	rel, ok := h.backend.relations[id]
	if !ok {
		h.t.Fatalf("unknown relation id %d", id)
	}

	if h.begun {
		for _, unit := range slices.Clone(rel.units) {
			h.emit(charm.Event{
				Kind:          charm.KindRelationDeparted,
				Relation:      rel.name,
				RelationID:    id,
				RemoteApp:     rel.remoteApp,
				RemoteUnit:    unit,
				DepartingUnit: unit,
			})
		}
	}

	delete(h.backend.relations, id)

	if h.begun {
		h.emit(charm.Event{Kind: charm.KindRelationBroken, Relation: rel.name, RelationID: id, RemoteApp: rel.remoteApp})
	}
}

// EmitHook fires a lifecycle hook such as install or update-status.
// Relation and pebble-ready events have dedicated harness operations.
func (h *Harness) EmitHook(kind charm.Kind) {
	h.t.Helper()
	if !kind.IsValid() || kind.IsRelation() || kind == charm.KindPebbleReady {
		h.t.Fatalf("EmitHook supports lifecycle hooks only, got %q", kind)
	}
	h.emit(charm.Event{Kind: kind, RelationID: -1})
}

// EmitPebbleReady fires <workload>-pebble-ready for a declared container.
func (h *Harness) EmitPebbleReady(workload string) {
	h.t.Helper()
	if _, ok := h.meta.Containers[workload]; !ok {
		h.t.Fatalf("container %q is not declared in metadata", workload)
	}
	h.emit(charm.Event{Kind: charm.KindPebbleReady, Workload: workload, RelationID: -1})
}

// UnitStatus returns the last unit status the charm set.
func (h *Harness) UnitStatus() charm.Status {
	return h.backend.unitStatus
}

// AppStatus returns the last application status the charm set.
func (h *Harness) AppStatus() charm.Status {
	return h.backend.appStatus
}

// AppVersion returns the workload version the charm recorded.
func (h *Harness) AppVersion() string {
	return h.backend.appVersion
}

// Logs returns the lines forwarded to the fake juju-log, oldest first.
func (h *Harness) Logs() []string {
	return slices.Clone(h.backend.logLines)
}

// emit replays any deferred events and then dispatches ev, the same
// order a real agent dispatch uses.
func (h *Harness) emit(ev charm.Event) {
	h.t.Helper()
	if !h.begun {
		h.t.Fatalf("event %q emitted before Begin", ev.Kind)
	}
	ctx := context.Background()
	require.NoError(h.t, h.charm.ReplayDeferred(ctx), "replay deferred events")
	require.NoError(h.t, h.charm.Dispatch(ctx, ev), "dispatch %s", ev.HookName())
}
