// Package main is the tester charm for the mlops-libs relation libraries.
//
// The same binary serves both sides of the k8s-service interface: it reads
// metadata.yaml at dispatch and registers the provider or requirer wiring
// depending on how the k8s-svc-info endpoint is declared. A charm without
// the endpoint still handles its workload container's pebble-ready.
//
// The provider side announces the Service named by the svc-name and
// svc-port config options; the requirer side mirrors the announcement it
// sees into its unit status.
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charm/dispatch"
	"github.com/charmed-mlops/mlops-libs/charmlog"
	"github.com/charmed-mlops/mlops-libs/k8ssvcinfo"
)

// workloadName is the container declared in the tester charm's metadata.
const workloadName = "some-container"

// Config options the provider side reads the announcement from.
const (
	configServiceName = "svc-name"
	configServicePort = "svc-port"
)

// stateKeyServiceInfo stores the last complete announcement a requirer
// saw, so later hooks can tell "never seen" from "gone away".
const stateKeyServiceInfo = "k8ssvcinfo.last"

// version, commit, and date are set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	dispatch.Main(register)
}

// register wires the tester charm's observers. The endpoint's declared
// role picks the side to run; metadata without the endpoint yields a
// charm that only minds its container.
func register(c *charm.Charm) error {
	c.OnHook(charm.KindInstall, func(ctx context.Context, _ charm.Event) error {
		return c.SetAppVersion(ctx, version)
	})

	if _, ok := c.Meta().Containers[workloadName]; ok {
		c.OnPebbleReady(workloadName, onPebbleReady(c))
	}

	switch c.Meta().Role(k8ssvcinfo.DefaultRelationName) {
	case charm.RoleProvider:
		return registerProvider(c)
	case charm.RoleRequirer:
		return registerRequirer(c)
	}
	return nil
}

// onPebbleReady marks the unit active once the workload container's Pebble
// answers. A socket that is not there yet defers the event to the next
// dispatch instead of failing the hook.
func onPebbleReady(c *charm.Charm) charm.Handler {
	return func(ctx context.Context, ev charm.Event) error {
		log := c.Logger().With().Str(charmlog.FieldWorkload, ev.Workload).Logger()

		container, err := c.Container(ev.Workload)
		if err != nil {
			return err
		}

		client, err := container.Pebble()
		if err != nil {
			log.Warn().Err(err).Msg("pebble socket not available, deferring")
			return ev.Defer()
		}
		defer func() { _ = client.Close() }()

		sysinfo, err := client.SystemInfo(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("pebble not answering, deferring")
			return ev.Defer()
		}
		log.Info().Str("pebble_version", sysinfo.Version).Msg("workload container ready")

		return c.SetUnitStatus(ctx, charm.ActiveStatus(""))
	}
}

// registerProvider wires the announcing side. The announcement lives in
// config, so it is re-read and re-published on every event that could
// change or redistribute it.
func registerProvider(c *charm.Charm) error {
	publish := providerPublish(c)
	c.OnRelation(k8ssvcinfo.DefaultRelationName, charm.KindRelationCreated, publish)
	c.OnRelation(k8ssvcinfo.DefaultRelationName, charm.KindRelationJoined, publish)
	c.OnHook(charm.KindConfigChanged, publish)
	c.OnHook(charm.KindLeaderElected, publish)
	return nil
}

// providerPublish reads the Service details from config and announces
// them on every relation. Missing or invalid config blocks the unit;
// non-leader units settle their status without writing databags.
func providerPublish(c *charm.Charm) charm.Handler {
	return func(ctx context.Context, _ charm.Event) error {
		name, okName, err := c.ConfigString(ctx, configServiceName)
		if err != nil {
			return err
		}
		port, okPort, err := c.ConfigString(ctx, configServicePort)
		if err != nil {
			return err
		}
		if !okName || !okPort {
			return c.SetUnitStatus(ctx, charm.BlockedStatus("svc-name and svc-port config required"))
		}

		info := k8ssvcinfo.ServiceInfo{Name: name, Port: port}
		if err := info.Validate(); err != nil {
			return c.SetUnitStatus(ctx, charm.BlockedStatus(err.Error()))
		}

		leader, err := c.IsLeader(ctx)
		if err != nil {
			return err
		}
		if leader {
			if err := k8ssvcinfo.Publish(ctx, c.Model(), k8ssvcinfo.DefaultRelationName, info); err != nil {
				return err
			}
		}

		return c.SetUnitStatus(ctx, charm.ActiveStatus(fmt.Sprintf("announcing %s:%s", name, port)))
	}
}

// registerRequirer wires the consuming side: the change handler follows
// relation traffic, and start/update-status re-evaluate the view for
// hooks that arrive outside it.
func registerRequirer(c *charm.Charm) error {
	requirer, err := k8ssvcinfo.NewRequirer(c,
		k8ssvcinfo.WithChangeHandler(onServiceInfoChanged(c)))
	if err != nil {
		return err
	}

	refresh := requirerRefresh(c, requirer)
	c.OnHook(charm.KindStart, refresh)
	c.OnHook(charm.KindUpdateStatus, refresh)
	return nil
}

// onServiceInfoChanged mirrors announcement changes into unit status and
// the unit state store.
func onServiceInfoChanged(c *charm.Charm) k8ssvcinfo.ChangeHandler {
	return func(ctx context.Context, info k8ssvcinfo.ServiceInfo, ok bool) error {
		if !ok {
			if err := c.State().Delete(stateKeyServiceInfo); err != nil {
				return err
			}
			return c.SetUnitStatus(ctx, charm.WaitingStatus("waiting for service info"))
		}

		if err := c.State().Set(stateKeyServiceInfo, info); err != nil {
			return err
		}
		return c.SetUnitStatus(ctx, charm.ActiveStatus(fmt.Sprintf("using %s:%s", info.Name, info.Port)))
	}
}

// requirerRefresh re-reads the announcement on demand. Relation errors
// mean the provider is not there or not done announcing, which keeps the
// unit waiting rather than failing the hook.
func requirerRefresh(c *charm.Charm, requirer *k8ssvcinfo.Requirer) charm.Handler {
	return func(ctx context.Context, _ charm.Event) error {
		info, err := requirer.ServiceInfo(ctx)
		if err != nil {
			var relMissing *k8ssvcinfo.RelationMissingError
			var dataMissing *k8ssvcinfo.RelationDataMissingError
			if errors.As(err, &relMissing) || errors.As(err, &dataMissing) {
				return c.SetUnitStatus(ctx, charm.WaitingStatus("waiting for service info"))
			}
			return err
		}
		return c.SetUnitStatus(ctx, charm.ActiveStatus(fmt.Sprintf("using %s:%s", info.Name, info.Port)))
	}
}
