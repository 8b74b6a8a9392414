package k8ssvcinfo

import (
	"context"

	"github.com/charmed-mlops/mlops-libs/charm"
)

// ChangeHandler is notified when the service information visible to a
// requirer changes. ok is false when the relation has gone away, in which
// case info is the zero value.
type ChangeHandler func(ctx context.Context, info ServiceInfo, ok bool) error

type options struct {
	relationName  string
	refreshKinds  []charm.Kind
	changeHandler ChangeHandler
}

// Option adjusts how a Provider or Requirer binds to its charm.
type Option func(*options)

// WithRelationName selects a non-default endpoint name. The name must
// still be declared in metadata.yaml with the k8s-service interface.
func WithRelationName(name string) Option {
	return func(o *options) {
		o.relationName = name
	}
}

// WithRefreshEvents makes a Provider republish on additional event kinds,
// for example charm.KindUpgradeCharm to refresh databags after a charm
// upgrade. Ignored by requirers.
func WithRefreshEvents(kinds ...charm.Kind) Option {
	return func(o *options) {
		o.refreshKinds = append(o.refreshKinds, kinds...)
	}
}

// WithChangeHandler subscribes a Requirer to relation changes. The
// handler fires with complete service info on every change and with
// ok=false when the relation breaks. Ignored by providers.
func WithChangeHandler(fn ChangeHandler) Option {
	return func(o *options) {
		o.changeHandler = fn
	}
}

func applyOptions(opts []Option) options {
	o := options{relationName: DefaultRelationName}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
