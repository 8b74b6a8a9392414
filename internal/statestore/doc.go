// Package statestore persists charm state between hook invocations in a
// SQLite file inside the charm directory. Each hook runs in a fresh
// process, so anything a charm wants to remember (stored values, deferred
// events) has to go through here.
package statestore
