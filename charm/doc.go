// Package charm is the operator runtime substrate for Juju charms.
//
// A charm process is started once per hook by the Juju unit agent. This
// package models that world:
//
//   - HookContext captures the JUJU_* environment the agent set up.
//   - Event describes the single occurrence being dispatched (a lifecycle
//     hook, a relation hook, or a workload pebble-ready hook).
//   - Charm holds the observer registry, the relation model, the unit's
//     local state, and status/version setters.
//   - Backend is the seam to the Juju controller. The real implementation
//     (charm/jujuc) shells out to the hook tools; the test implementation
//     (charmtest) keeps everything in memory.
//
// Charm authors write a register function that wires observers, then hand
// it to dispatch.Main. Relation libraries such as k8ssvcinfo build on the
// same observer registry.
//
// Relation data bags are string-to-string maps. Writing the application
// data bag is restricted to the leader unit; writing an empty value
// deletes the key, matching `relation-set key=` semantics.
package charm
