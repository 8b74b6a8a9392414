// Package pebble is a minimal client for the Pebble service manager that
// runs inside workload containers on Kubernetes charms.
//
// Pebble exposes a JSON API over a per-container unix socket that the
// Juju agent mounts at /charm/containers/<name>/pebble.socket. This
// package covers the slice of that API a charm needs after pebble-ready:
// health checking, pushing service layers, starting and stopping
// services, and waiting on the resulting changes.
//
// Service layers are YAML documents. Layers stack: each service entry
// declares an override policy ("replace" or "merge") that decides how it
// combines with the same service in lower layers. CombineLayers
// implements that merge and is what Plan reflects.
package pebble
