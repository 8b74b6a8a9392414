package charm

import (
	"fmt"
	"strings"
)

// StatusKind represents a Juju workload status value. A unit moves
// between these states as its charm reacts to events:
//
//	maintenance → waiting → active ⇄ blocked
//
// Only the four settable kinds can be written with status-set; "unknown"
// is what Juju reports before a charm has set any status at all.
type StatusKind string

const (
	// StatusActive indicates the workload is up and serving.
	StatusActive StatusKind = "active"

	// StatusBlocked indicates the charm needs operator intervention,
	// for example a missing relation or configuration value.
	StatusBlocked StatusKind = "blocked"

	// StatusWaiting indicates the charm is waiting on another charm
	// or resource it is integrated with.
	StatusWaiting StatusKind = "waiting"

	// StatusMaintenance indicates the charm is actively working on the
	// workload (installing, upgrading, reconfiguring).
	StatusMaintenance StatusKind = "maintenance"

	// StatusUnknown is the initial status of a unit before the charm
	// has reported anything. It cannot be set with status-set.
	StatusUnknown StatusKind = "unknown"
)

// String returns the string representation of the StatusKind.
// This method satisfies the fmt.Stringer interface.
func (k StatusKind) String() string {
	return string(k)
}

// IsValid checks whether the StatusKind is one of the kinds a charm is
// allowed to set via status-set.
func (k StatusKind) IsValid() bool {
	switch k {
	case StatusActive, StatusBlocked, StatusWaiting, StatusMaintenance:
		return true
	default:
		return false
	}
}

// ParseStatusKind converts a string to a settable StatusKind.
// Returns an error if the string does not name a settable status.
func ParseStatusKind(s string) (StatusKind, error) {
	kind := StatusKind(strings.ToLower(s))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid status %q (valid: active, blocked, waiting, maintenance)", s)
	}
	return kind, nil
}

// Status is a workload status with an optional operator-visible message.
// The message shows up in `juju status` next to the unit.
type Status struct {
	Kind    StatusKind
	Message string
}

// ActiveStatus returns an active status with the given message.
func ActiveStatus(message string) Status {
	return Status{Kind: StatusActive, Message: message}
}

// BlockedStatus returns a blocked status with the given message.
// Blocked statuses should name the intervention the operator must take.
func BlockedStatus(message string) Status {
	return Status{Kind: StatusBlocked, Message: message}
}

// WaitingStatus returns a waiting status with the given message.
func WaitingStatus(message string) Status {
	return Status{Kind: StatusWaiting, Message: message}
}

// MaintenanceStatus returns a maintenance status with the given message.
func MaintenanceStatus(message string) Status {
	return Status{Kind: StatusMaintenance, Message: message}
}

// String returns "kind: message", or just the kind when there is no message.
func (s Status) String() string {
	if s.Message == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s: %s", s.Kind, s.Message)
}
