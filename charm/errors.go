package charm

import (
	"errors"
	"fmt"
)

// ErrDefer is returned by a handler to requeue the current event.
// The event is persisted in the unit's state database and re-emitted
// at the start of the next dispatch, before the primary event.
var ErrDefer = errors.New("event deferred")

// ErrNotLeader is returned when an operation requires unit leadership,
// such as writing the local application data bag of a relation.
var ErrNotLeader = errors.New("unit is not the leader")

// ErrUnknownHook is returned by ParseHookName for hook names that do not
// match any hook kind this substrate models. Dispatch treats such hooks
// as events with no observers rather than as failures, so charms keep
// working when Juju introduces new hook kinds.
var ErrUnknownHook = errors.New("unknown hook")

// TooManyRelatedAppsError is returned by Model.Relation when an endpoint
// that is expected to have at most one related application has more.
// Callers that support multiple relations on an endpoint should use
// Model.Relations instead.
type TooManyRelatedAppsError struct {
	// Relation is the endpoint name that was queried.
	Relation string

	// Count is the number of related applications found.
	Count int

	// Limit is the maximum number of related applications the caller
	// allowed (always 1 for Model.Relation).
	Limit int
}

// Error satisfies the error interface.
func (e *TooManyRelatedAppsError) Error() string {
	return fmt.Sprintf("too many remote applications on relation %q (%d > %d)",
		e.Relation, e.Count, e.Limit)
}
