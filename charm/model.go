package charm

import (
	"context"
	"fmt"
	"strings"
)

// Model gives relation access scoped to this unit. All reads and writes
// go straight to the Backend; nothing is cached, so data written earlier
// in the same hook is visible to later reads.
type Model struct {
	backend  Backend
	name     string
	uuid     string
	unitName string
	appName  string
}

// NewModel builds a Model over a Backend. unitName is this unit
// ("app/0"); the application name is derived from it. Model and UUID
// may be empty outside a full dispatch (the debug CLI does this).
func NewModel(b Backend, unitName, modelName, modelUUID string) *Model {
	app, _, _ := strings.Cut(unitName, "/")
	return &Model{
		backend:  b,
		name:     modelName,
		uuid:     modelUUID,
		unitName: unitName,
		appName:  app,
	}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// UUID returns the model UUID.
func (m *Model) UUID() string { return m.uuid }

// UnitName returns this unit's name.
func (m *Model) UnitName() string { return m.unitName }

// AppName returns this unit's application name.
func (m *Model) AppName() string { return m.appName }

// Relations returns all relation instances on the named endpoint, one
// per related application. The slice is ordered by relation ID. An
// endpoint with no relations yields an empty slice and no error.
func (m *Model) Relations(ctx context.Context, endpoint string) ([]*Relation, error) {
	ids, err := m.backend.RelationIDs(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("list relations on %q: %w", endpoint, err)
	}

	relations := make([]*Relation, 0, len(ids))
	for _, id := range ids {
		remoteApp, err := m.backend.RelationRemoteApp(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve remote application of relation %d: %w", id, err)
		}
		relations = append(relations, &Relation{
			ID:        id,
			Name:      endpoint,
			RemoteApp: remoteApp,
			backend:   m.backend,
			localUnit: m.unitName,
			localApp:  m.appName,
		})
	}
	return relations, nil
}

// Relation returns the single relation instance on the named endpoint.
//
// With no related application it returns (nil, nil); absence policy
// belongs to the caller. With more than one related application it
// returns a TooManyRelatedAppsError, since the caller asked for "the"
// relation of an endpoint that turned out to be ambiguous.
func (m *Model) Relation(ctx context.Context, endpoint string) (*Relation, error) {
	relations, err := m.Relations(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	switch len(relations) {
	case 0:
		return nil, nil
	case 1:
		return relations[0], nil
	default:
		return nil, &TooManyRelatedAppsError{Relation: endpoint, Count: len(relations), Limit: 1}
	}
}

// Relation is one relation instance between this application and a
// remote application. Data bag accessors return snapshot copies; mutating
// the returned map does not write back.
type Relation struct {
	// ID is the relation instance ID, unique within the model.
	ID int

	// Name is the local endpoint name.
	Name string

	// RemoteApp is the application on the other end. It can be empty
	// during relation-broken, when the counterpart is already gone.
	RemoteApp string

	backend   Backend
	localUnit string
	localApp  string
}

// String returns the "endpoint:id" form Juju uses to name relation
// instances, e.g. "k8s-svc-info:3".
func (r *Relation) String() string {
	return fmt.Sprintf("%s:%d", r.Name, r.ID)
}

// Units returns the remote unit names currently in the relation.
func (r *Relation) Units(ctx context.Context) ([]string, error) {
	return r.backend.RelationUnits(ctx, r.ID)
}

// LocalUnitData reads this unit's data bag.
func (r *Relation) LocalUnitData(ctx context.Context) (map[string]string, error) {
	return r.backend.RelationGet(ctx, r.ID, r.localUnit, false)
}

// LocalAppData reads this application's data bag.
func (r *Relation) LocalAppData(ctx context.Context) (map[string]string, error) {
	return r.backend.RelationGet(ctx, r.ID, r.localApp, true)
}

// RemoteAppData reads the remote application's data bag. This is the bag
// relation libraries publish their interface data in.
func (r *Relation) RemoteAppData(ctx context.Context) (map[string]string, error) {
	return r.backend.RelationGet(ctx, r.ID, r.RemoteApp, true)
}

// RemoteUnitData reads the named remote unit's data bag.
func (r *Relation) RemoteUnitData(ctx context.Context, unit string) (map[string]string, error) {
	return r.backend.RelationGet(ctx, r.ID, unit, false)
}

// SetLocalUnitData writes into this unit's data bag. Empty values delete
// their keys.
func (r *Relation) SetLocalUnitData(ctx context.Context, data map[string]string) error {
	if err := r.backend.RelationSet(ctx, r.ID, false, data); err != nil {
		return fmt.Errorf("set unit data on %s: %w", r, err)
	}
	return nil
}

// SetLocalAppData writes into this application's data bag. Only the
// leader unit may do this; non-leaders get an error wrapping ErrNotLeader
// from the backend.
func (r *Relation) SetLocalAppData(ctx context.Context, data map[string]string) error {
	if err := r.backend.RelationSet(ctx, r.ID, true, data); err != nil {
		return fmt.Errorf("set application data on %s: %w", r, err)
	}
	return nil
}
