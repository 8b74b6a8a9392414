package charmtest

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmed-mlops/mlops-libs/charm"
)

// relationState is one established relation as the fake backend tracks it.
type relationState struct {
	id        int
	name      string
	remoteApp string

	// units lists the remote units that have joined.
	units []string

	// Remote databags, readable by the charm under test.
	appData  map[string]string
	unitData map[string]map[string]string

	// Local databags, written by the charm under test.
	localAppData  map[string]string
	localUnitData map[string]string
}

// backend is an in-memory charm.Backend. It mimics the hook tools'
// behavior closely enough for unit tests, including leader gating of
// application databag and application status writes.
type backend struct {
	unitName string
	appName  string

	leader bool
	config map[string]any

	relations map[int]*relationState
	nextRelID int

	unitStatus charm.Status
	appStatus  charm.Status
	appVersion string
	logLines   []string
}

var _ charm.Backend = (*backend)(nil)

func newBackend(unitName, appName string) *backend {
	return &backend{
		unitName:  unitName,
		appName:   appName,
		config:    map[string]any{},
		relations: map[int]*relationState{},
	}
}

func (b *backend) relation(id int) (*relationState, error) {
	rel, ok := b.relations[id]
	if !ok {
		return nil, fmt.Errorf("unknown relation id %d", id)
	}
	return rel, nil
}

func (b *backend) RelationIDs(_ context.Context, endpoint string) ([]int, error) {
	var ids []int
	for id, rel := range b.relations {
		if rel.name == endpoint {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (b *backend) RelationUnits(_ context.Context, id int) ([]string, error) {
	rel, err := b.relation(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rel.units), nil
}

func (b *backend) RelationRemoteApp(_ context.Context, id int) (string, error) {
	rel, err := b.relation(id)
	if err != nil {
		return "", err
	}
	return rel.remoteApp, nil
}

func (b *backend) RelationGet(_ context.Context, id int, member string, app bool) (map[string]string, error) {
	rel, err := b.relation(id)
	if err != nil {
		return nil, err
	}

	if app {
		switch member {
		case b.appName:
			return charm.CloneBag(rel.localAppData), nil
		case rel.remoteApp:
			return charm.CloneBag(rel.appData), nil
		}
		return nil, fmt.Errorf("relation %d: unknown application %q", id, member)
	}

	if member == b.unitName {
		return charm.CloneBag(rel.localUnitData), nil
	}
	if data, ok := rel.unitData[member]; ok {
		return charm.CloneBag(data), nil
	}
	return nil, fmt.Errorf("relation %d: unknown unit %q", id, member)
}

func (b *backend) RelationSet(_ context.Context, id int, app bool, data map[string]string) error {
	rel, err := b.relation(id)
	if err != nil {
		return err
	}

	if app {
		if !b.leader {
			return charm.ErrNotLeader
		}
		if rel.localAppData == nil {
			rel.localAppData = map[string]string{}
		}
		charm.ApplyBag(rel.localAppData, data)
		return nil
	}

	if rel.localUnitData == nil {
		rel.localUnitData = map[string]string{}
	}
	charm.ApplyBag(rel.localUnitData, data)
	return nil
}

func (b *backend) IsLeader(_ context.Context) (bool, error) {
	return b.leader, nil
}

func (b *backend) ConfigGet(_ context.Context) (map[string]any, error) {
	cfg := make(map[string]any, len(b.config))
	for k, v := range b.config {
		cfg[k] = v
	}
	return cfg, nil
}

func (b *backend) StatusSet(_ context.Context, app bool, kind charm.StatusKind, message string) error {
	status := charm.Status{Kind: kind, Message: message}
	if app {
		if !b.leader {
			return charm.ErrNotLeader
		}
		b.appStatus = status
		return nil
	}
	b.unitStatus = status
	return nil
}

func (b *backend) JujuLog(_ context.Context, level, message string) error {
	b.logLines = append(b.logLines, fmt.Sprintf("%s %s", level, message))
	return nil
}

func (b *backend) ApplicationVersionSet(_ context.Context, version string) error {
	b.appVersion = version
	return nil
}
