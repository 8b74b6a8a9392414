// Package jujuc invokes the Juju hook tools (relation-get, relation-set,
// is-leader, status-set and friends) as subprocesses and exposes them
// through the charm.Backend interface. It is the only package that talks
// to the Juju agent; everything above it works against the interface.
package jujuc
