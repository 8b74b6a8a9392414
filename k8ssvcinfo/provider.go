package k8ssvcinfo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charmlog"
)

// Provider announces a Kubernetes Service to every application related on
// its endpoint. It publishes on relation-created, relation-joined, and
// leader-elected without further involvement from the charm, so related
// applications converge no matter which side settles first.
type Provider struct {
	charm        *charm.Charm
	relationName string
	log          zerolog.Logger

	info ServiceInfo
}

// NewProvider binds a provider to its charm with the Service details to
// announce. The endpoint must be declared under provides in
// metadata.yaml, and info must validate.
//
// Only the leader unit writes application databags; on non-leaders the
// automatic publishes are silent no-ops.
func NewProvider(c *charm.Charm, info ServiceInfo, opts ...Option) (*Provider, error) {
	o := applyOptions(opts)

	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service info: %w", err)
	}
	if c.Meta().Role(o.relationName) != charm.RoleProvider {
		return nil, fmt.Errorf("endpoint %q is not declared under provides in metadata", o.relationName)
	}

	p := &Provider{
		charm:        c,
		relationName: o.relationName,
		log:          c.Logger().With().Str(charmlog.FieldComponent, "k8ssvcinfo/provider").Logger(),
		info:         info,
	}

	c.OnRelation(o.relationName, charm.KindRelationCreated, p.publish)
	c.OnRelation(o.relationName, charm.KindRelationJoined, p.publish)
	c.OnHook(charm.KindLeaderElected, p.publish)
	for _, kind := range o.refreshKinds {
		if kind.IsRelation() {
			c.OnRelation(o.relationName, kind, p.publish)
		} else {
			c.OnHook(kind, p.publish)
		}
	}
	return p, nil
}

// RelationName returns the endpoint this provider announces on.
func (p *Provider) RelationName() string {
	return p.relationName
}

// publish pushes the stored announcement to all relations when this unit
// is the leader.
func (p *Provider) publish(ctx context.Context, ev charm.Event) error {
	leader, err := p.charm.IsLeader(ctx)
	if err != nil {
		return err
	}
	if !leader {
		p.log.Debug().
			Str(charmlog.FieldEvent, ev.Kind.String()).
			Str(charmlog.FieldEndpoint, p.relationName).
			Msg("not the leader, skipping publish")
		return nil
	}
	return Publish(ctx, p.charm.Model(), p.relationName, p.info)
}

// Send publishes new Service details immediately and keeps them for the
// automatic publishes that follow. Unlike those, an explicit Send on a
// non-leader unit is an error wrapping charm.ErrNotLeader.
func (p *Provider) Send(ctx context.Context, info ServiceInfo) error {
	if err := info.Validate(); err != nil {
		return fmt.Errorf("invalid service info: %w", err)
	}

	leader, err := p.charm.IsLeader(ctx)
	if err != nil {
		return err
	}
	if !leader {
		return fmt.Errorf("cannot send service info: %w", charm.ErrNotLeader)
	}

	p.info = info
	return Publish(ctx, p.charm.Model(), p.relationName, info)
}

// Publish writes the announcement into the local application databag of
// every relation on relationName. It completes successfully when no
// application is related.
func Publish(ctx context.Context, m *charm.Model, relationName string, info ServiceInfo) error {
	rels, err := m.Relations(ctx, relationName)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if err := rel.SetLocalAppData(ctx, info.bag()); err != nil {
			return err
		}
	}
	return nil
}
