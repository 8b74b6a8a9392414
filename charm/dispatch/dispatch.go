// Package dispatch wires a charm to a live Juju hook invocation.
//
// A charm binary's main function hands its registration function to Main.
// Run then assembles the pieces in order: the hook tool runner, the global
// logger (mirrored into juju-log), the hook environment, charm metadata,
// the unit state store, and finally the charm itself. The hook named by
// the environment is parsed into an event and dispatched.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charm/jujuc"
	"github.com/charmed-mlops/mlops-libs/charmlog"
	"github.com/charmed-mlops/mlops-libs/internal/statestore"
)

// stateFile is the SQLite file holding unit state, resolved against the
// charm directory. The leading dot keeps it out of charm resource globs.
const stateFile = ".unit-state.db"

var (
	_ charm.State      = (*statestore.Store)(nil)
	_ charm.EventQueue = (*statestore.Store)(nil)
)

// Main runs the charm for the current hook invocation and exits the
// process with the dispatch status. It is the only line a charm binary's
// main function needs.
func Main(register charm.RegisterFunc) {
	os.Exit(Run(register))
}

// Run executes one hook dispatch end to end and returns the process exit
// code: 0 on success (including hooks the charm does not recognize), 1 on
// any failure. A non-zero exit makes Juju mark the hook failed and retry
// it, so errors must only escape for genuinely retryable conditions.
func Run(register charm.RegisterFunc) int {
	ctx := context.Background()

	backend, err := jujuc.NewRunner()
	if err != nil {
		// No hook context means no juju-log either, so plain stderr is
		// all there is.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	charmlog.Configure(charmlog.Config{Sink: backend})
	log := charmlog.WithComponent("dispatch")

	hctx, err := charm.ContextFromEnv(charmlog.WithComponent("hookenv"))
	if err != nil {
		log.Error().Err(err).Msg("invalid hook environment")
		return 1
	}

	meta, err := charm.LoadMeta(hctx.CharmDir)
	if err != nil {
		log.Error().Err(err).Msg("load charm metadata")
		return 1
	}

	store, err := statestore.Open(filepath.Join(hctx.CharmDir, stateFile))
	if err != nil {
		log.Error().Err(err).Msg("open unit state store")
		return 1
	}
	defer func() { _ = store.Close() }()

	c, err := charm.New(charm.Config{
		Meta:      meta,
		Backend:   backend,
		State:     store,
		Queue:     store,
		Logger:    charmlog.WithComponent("charm"),
		UnitName:  hctx.UnitName,
		ModelName: hctx.ModelName,
		ModelUUID: hctx.ModelUUID,
		CharmDir:  hctx.CharmDir,
	})
	if err != nil {
		log.Error().Err(err).Msg("construct charm")
		return 1
	}

	if err := register(c); err != nil {
		log.Error().Err(err).Msg("charm registration failed")
		return 1
	}

	ev, err := hctx.Event()
	if err != nil {
		if errors.Is(err, charm.ErrUnknownHook) {
			// Juju also dispatches hooks this runtime does not model,
			// such as actions or collect-metrics. Exiting zero leaves
			// them as no-ops instead of failed hooks.
			log.Warn().Str(charmlog.FieldHook, hctx.HookName).Msg("ignoring unknown hook")
			return 0
		}
		log.Error().Err(err).Str(charmlog.FieldHook, hctx.HookName).Msg("parse hook event")
		return 1
	}

	// Deferred events replay before the live event so handlers observe
	// them in their original order.
	if err := c.ReplayDeferred(ctx); err != nil {
		log.Error().Err(err).Msg("replay deferred events")
		return 1
	}

	if err := c.Dispatch(ctx, ev); err != nil {
		log.Error().Err(err).Str(charmlog.FieldHook, hctx.HookName).Msg("hook failed")
		return 1
	}
	return 0
}
