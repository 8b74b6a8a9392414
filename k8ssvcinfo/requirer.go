package k8ssvcinfo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charmlog"
)

// Requirer reads Kubernetes Service information published by the single
// application related on its endpoint.
type Requirer struct {
	charm        *charm.Charm
	relationName string
	log          zerolog.Logger
}

// NewRequirer binds a requirer to its charm. The endpoint must be
// declared under requires in metadata.yaml. When a ChangeHandler is
// supplied it is wired to the endpoint's relation-changed and
// relation-broken events.
func NewRequirer(c *charm.Charm, opts ...Option) (*Requirer, error) {
	o := applyOptions(opts)

	if c.Meta().Role(o.relationName) != charm.RoleRequirer {
		return nil, fmt.Errorf("endpoint %q is not declared under requires in metadata", o.relationName)
	}

	r := &Requirer{
		charm:        c,
		relationName: o.relationName,
		log:          c.Logger().With().Str(charmlog.FieldComponent, "k8ssvcinfo/requirer").Logger(),
	}

	if o.changeHandler != nil {
		c.OnRelation(o.relationName, charm.KindRelationChanged, r.changed(o.changeHandler))
		c.OnRelation(o.relationName, charm.KindRelationBroken, r.broken(o.changeHandler))
	}
	return r, nil
}

// RelationName returns the endpoint this requirer reads from.
func (r *Requirer) RelationName() string {
	return r.relationName
}

// ServiceInfo fetches the current announcement from the related
// application. It fails with *RelationMissingError when nothing is
// related, *RelationDataMissingError when the databag is empty or
// incomplete, and *charm.TooManyRelatedAppsError when more than one
// application is related.
func (r *Requirer) ServiceInfo(ctx context.Context) (ServiceInfo, error) {
	return Fetch(ctx, r.charm.Model(), r.relationName)
}

// changed adapts a ChangeHandler to relation-changed events. The handler
// only sees complete announcements; partial databags are skipped because
// the provider may still be writing.
func (r *Requirer) changed(fn ChangeHandler) charm.Handler {
	return func(ctx context.Context, _ charm.Event) error {
		info, err := Fetch(ctx, r.charm.Model(), r.relationName)
		if err != nil {
			r.log.Debug().Err(err).
				Str(charmlog.FieldEndpoint, r.relationName).
				Msg("service info not ready, skipping notification")
			return nil
		}
		return fn(ctx, info, true)
	}
}

// broken adapts a ChangeHandler to relation-broken events.
func (r *Requirer) broken(fn ChangeHandler) charm.Handler {
	return func(ctx context.Context, _ charm.Event) error {
		return fn(ctx, ServiceInfo{}, false)
	}
}

// Fetch reads the remote application's service announcement from the
// single relation on relationName. Exactly one related application is
// expected; see Requirer.ServiceInfo for the error contract.
func Fetch(ctx context.Context, m *charm.Model, relationName string) (ServiceInfo, error) {
	rel, err := m.Relation(ctx, relationName)
	if err != nil {
		return ServiceInfo{}, err
	}
	if rel == nil {
		return ServiceInfo{}, &RelationMissingError{Relation: relationName}
	}

	bag, err := rel.RemoteAppData(ctx)
	if err != nil {
		return ServiceInfo{}, err
	}
	if len(bag) == 0 {
		return ServiceInfo{}, &RelationDataMissingError{Relation: relationName}
	}

	info, missing := infoFromBag(bag)
	if len(missing) > 0 {
		return ServiceInfo{}, &RelationDataMissingError{Relation: relationName, Missing: missing}
	}
	return info, nil
}
