package charm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Handler reacts to one dispatched event. Returning ErrDefer (or
// ev.Defer()) requeues the event for the next dispatch; any other
// non-nil error fails the hook.
type Handler func(ctx context.Context, ev Event) error

// RegisterFunc is the charm author's wiring function. It runs once per
// dispatch, before any event is emitted, and registers all observers.
// Relation libraries are constructed here so their observers are in
// place for deferred-event replay too.
type RegisterFunc func(c *Charm) error

// State is the charm's persistent local key-value store, kept in the
// unit state database. Values round-trip through JSON.
//
// State survives across hooks on the same unit but is lost when the
// unit is removed; anything other units or apps must see belongs in
// relation data instead.
type State interface {
	// Get unmarshals the value stored under key into out. The bool
	// reports whether the key existed.
	Get(key string, out any) (bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value any) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// EventQueue persists deferred events between dispatches, in FIFO order.
type EventQueue interface {
	// PushDeferred appends a serialized event and returns its queue ID.
	PushDeferred(payload []byte) (int64, error)

	// EachDeferred calls fn for every queued event, oldest first.
	EachDeferred(fn func(id int64, payload []byte) error) error

	// RemoveDeferred drops the event with the given queue ID.
	RemoveDeferred(id int64) error
}

// Config carries the dependencies a Charm is built from. The dispatch
// package fills it from the hook environment; the charmtest harness
// fills it with in-memory implementations.
type Config struct {
	// Meta is the parsed charm metadata. Required.
	Meta *Meta

	// Backend talks to the Juju agent. Required.
	Backend Backend

	// State is the unit's persistent key-value state. Optional; when nil,
	// State() returns a store that errors on every call.
	State State

	// Queue holds deferred events. Optional; when nil, ErrDefer from a
	// handler is reported as a hook failure instead of being queued.
	Queue EventQueue

	// Logger is the charm's base logger.
	Logger zerolog.Logger

	// UnitName is this unit ("app/0"). Required.
	UnitName string

	// ModelName and ModelUUID identify the hosting model.
	ModelName string
	ModelUUID string

	// CharmDir is the root of the unpacked charm, when running under the
	// agent.
	CharmDir string
}

// observerKey routes an event to its handlers: lifecycle kinds have an
// empty scope, relation kinds are scoped by endpoint, pebble-ready by
// container name.
type observerKey struct {
	kind  Kind
	scope string
}

// Charm is the live object handed to the register function. It is not
// safe for concurrent use; a hook dispatch is single-threaded.
type Charm struct {
	meta      *Meta
	backend   Backend
	model     *Model
	state     State
	queue     EventQueue
	log       zerolog.Logger
	charmDir  string
	observers map[observerKey][]Handler
}

// New builds a Charm from its dependencies. Most charms never call this
// directly: dispatch.Run wires it from the hook environment, and
// charmtest.Harness wires it for tests.
func New(cfg Config) (*Charm, error) {
	if cfg.Meta == nil {
		return nil, fmt.Errorf("charm: Config.Meta is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("charm: Config.Backend is required")
	}
	if cfg.UnitName == "" {
		return nil, fmt.Errorf("charm: Config.UnitName is required")
	}

	state := cfg.State
	if state == nil {
		state = unusableState{}
	}

	return &Charm{
		meta:      cfg.Meta,
		backend:   cfg.Backend,
		model:     NewModel(cfg.Backend, cfg.UnitName, cfg.ModelName, cfg.ModelUUID),
		state:     state,
		queue:     cfg.Queue,
		log:       cfg.Logger,
		charmDir:  cfg.CharmDir,
		observers: make(map[observerKey][]Handler),
	}, nil
}

// Meta returns the parsed charm metadata.
func (c *Charm) Meta() *Meta { return c.meta }

// Model returns relation access for this unit.
func (c *Charm) Model() *Model { return c.model }

// State returns the unit's persistent key-value state.
func (c *Charm) State() State { return c.state }

// Logger returns the charm's base logger.
func (c *Charm) Logger() zerolog.Logger { return c.log }

// UnitName returns this unit's name, e.g. "mlops-libs-charm/0".
func (c *Charm) UnitName() string { return c.model.UnitName() }

// AppName returns this unit's application name.
func (c *Charm) AppName() string { return c.model.AppName() }

// CharmDir returns the charm root directory, when known.
func (c *Charm) CharmDir() string { return c.charmDir }

// IsLeader reports whether this unit is the application leader.
func (c *Charm) IsLeader(ctx context.Context) (bool, error) {
	return c.backend.IsLeader(ctx)
}

// Config returns the application configuration. Values are strings,
// booleans, or numbers depending on the declared option types.
func (c *Charm) Config(ctx context.Context) (map[string]any, error) {
	return c.backend.ConfigGet(ctx)
}

// ConfigString returns the string config option under key. The bool
// reports whether the option is present with a non-empty string value;
// options of other types are ignored.
func (c *Charm) ConfigString(ctx context.Context, key string) (string, bool, error) {
	cfg, err := c.Config(ctx)
	if err != nil {
		return "", false, err
	}
	s, ok := cfg[key].(string)
	if !ok || s == "" {
		return "", false, nil
	}
	return s, true, nil
}

// SetUnitStatus sets this unit's workload status.
func (c *Charm) SetUnitStatus(ctx context.Context, st Status) error {
	if !st.Kind.IsValid() {
		return fmt.Errorf("set unit status: invalid status %q", st.Kind)
	}
	return c.backend.StatusSet(ctx, false, st.Kind, st.Message)
}

// SetAppStatus sets the application status. Juju restricts this to the
// leader unit.
func (c *Charm) SetAppStatus(ctx context.Context, st Status) error {
	if !st.Kind.IsValid() {
		return fmt.Errorf("set application status: invalid status %q", st.Kind)
	}
	return c.backend.StatusSet(ctx, true, st.Kind, st.Message)
}

// SetAppVersion records the workload version displayed in `juju status`.
func (c *Charm) SetAppVersion(ctx context.Context, version string) error {
	return c.backend.ApplicationVersionSet(ctx, version)
}

// Container returns the named workload container declared in metadata.
func (c *Charm) Container(name string) (*Container, error) {
	meta, ok := c.meta.Containers[name]
	if !ok {
		return nil, fmt.Errorf("container %q not declared in charm metadata", name)
	}
	return &Container{Name: name, Meta: meta}, nil
}

// OnHook registers a handler for a lifecycle hook kind (install, start,
// config-changed, ...). Registration mistakes are programming errors and
// panic: relation and pebble-ready kinds must use their scoped variants.
func (c *Charm) OnHook(kind Kind, h Handler) {
	if kind.IsRelation() || kind == KindPebbleReady {
		panic(fmt.Sprintf("charm: OnHook called with scoped kind %q; use OnRelation or OnPebbleReady", kind))
	}
	if !kind.IsValid() {
		panic(fmt.Sprintf("charm: OnHook called with unknown kind %q", kind))
	}
	c.observe(observerKey{kind: kind}, h)
}

// OnRelation registers a handler for a relation hook kind on the named
// endpoint. The endpoint must be declared in metadata; anything else is
// a programming error and panics.
func (c *Charm) OnRelation(endpoint string, kind Kind, h Handler) {
	if !kind.IsRelation() {
		panic(fmt.Sprintf("charm: OnRelation called with non-relation kind %q", kind))
	}
	if c.meta.Role(endpoint) == RoleNone {
		panic(fmt.Sprintf("charm: OnRelation called with undeclared endpoint %q", endpoint))
	}
	c.observe(observerKey{kind: kind, scope: endpoint}, h)
}

// OnPebbleReady registers a handler for the named workload container's
// pebble-ready hook. The container must be declared in metadata.
func (c *Charm) OnPebbleReady(workload string, h Handler) {
	if _, ok := c.meta.Containers[workload]; !ok {
		panic(fmt.Sprintf("charm: OnPebbleReady called with undeclared container %q", workload))
	}
	c.observe(observerKey{kind: KindPebbleReady, scope: workload}, h)
}

func (c *Charm) observe(key observerKey, h Handler) {
	if h == nil {
		panic("charm: nil handler")
	}
	c.observers[key] = append(c.observers[key], h)
}

// Emit runs the handlers registered for the event, in registration
// order, stopping at the first error. Events with no observers are
// logged and dropped. Emit performs no deferral bookkeeping; use
// Dispatch for that.
func (c *Charm) Emit(ctx context.Context, ev Event) error {
	key := observerKey{kind: ev.Kind}
	switch {
	case ev.Kind.IsRelation():
		key.scope = ev.Relation
	case ev.Kind == KindPebbleReady:
		key.scope = ev.Workload
	}

	handlers := c.observers[key]
	if len(handlers) == 0 {
		c.log.Debug().Str("hook", ev.HookName()).Msg("no observers for event")
		return nil
	}

	c.log.Debug().Str("hook", ev.HookName()).Int("observers", len(handlers)).Msg("emitting event")
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			if errors.Is(err, ErrDefer) {
				return err
			}
			return fmt.Errorf("%s: %w", ev.HookName(), err)
		}
	}
	return nil
}

// Dispatch emits the event and handles deferral: when a handler returns
// ErrDefer the event is pushed onto the queue and Dispatch succeeds, so
// the hook exits cleanly and the event comes back next dispatch.
func (c *Charm) Dispatch(ctx context.Context, ev Event) error {
	err := c.Emit(ctx, ev)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDefer) {
		return err
	}
	if c.queue == nil {
		return fmt.Errorf("%s deferred but no event queue is configured", ev.HookName())
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("serialize deferred event: %w", err)
	}
	if _, err := c.queue.PushDeferred(payload); err != nil {
		return fmt.Errorf("queue deferred event: %w", err)
	}
	c.log.Info().Str("hook", ev.HookName()).Msg("event deferred")
	return nil
}

// ReplayDeferred re-emits previously deferred events in FIFO order.
// An event whose handlers now succeed is dropped from the queue; one
// that defers again stays queued in place; a real handler error stops
// the replay and fails the hook, leaving the event queued.
func (c *Charm) ReplayDeferred(ctx context.Context) error {
	if c.queue == nil {
		return nil
	}

	type queued struct {
		id int64
		ev Event
	}
	var pending []queued
	err := c.queue.EachDeferred(func(id int64, payload []byte) error {
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode deferred event %d: %w", id, err)
		}
		pending = append(pending, queued{id: id, ev: ev})
		return nil
	})
	if err != nil {
		return err
	}

	for _, q := range pending {
		c.log.Debug().Str("hook", q.ev.HookName()).Int64("id", q.id).Msg("replaying deferred event")
		err := c.Emit(ctx, q.ev)
		if errors.Is(err, ErrDefer) {
			continue
		}
		if err != nil {
			return err
		}
		if err := c.queue.RemoveDeferred(q.id); err != nil {
			return fmt.Errorf("drop deferred event %d: %w", q.id, err)
		}
	}
	return nil
}

// unusableState is the State used when none was configured. Every call
// errors so a charm that needs state fails loudly instead of silently
// losing writes.
type unusableState struct{}

var errNoState = errors.New("no state store configured")

func (unusableState) Get(string, any) (bool, error) { return false, errNoState }
func (unusableState) Set(string, any) error         { return errNoState }
func (unusableState) Delete(string) error           { return errNoState }
