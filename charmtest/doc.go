// Package charmtest provides an in-memory harness for unit-testing charms
// without a Juju controller. The harness owns a fake backend in place of
// the hook tools; tests drive it through operations like SetLeader,
// AddRelation, and UpdateRelationData, and each mutation after Begin emits
// the same events Juju would. Assertions read back unit status, databags,
// and the forwarded log lines.
package charmtest
