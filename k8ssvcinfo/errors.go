package k8ssvcinfo

import "fmt"

// RelationMissingError reports that no application is related on the
// endpoint the requirer reads from.
type RelationMissingError struct {
	// Relation is the endpoint name the lookup ran against.
	Relation string
}

// Error implements the error interface.
func (e *RelationMissingError) Error() string {
	return fmt.Sprintf("missing relation %q", e.Relation)
}

// RelationDataMissingError reports an empty or incomplete application
// databag on an established relation.
type RelationDataMissingError struct {
	// Relation is the endpoint name the data was read from.
	Relation string

	// Missing lists the absent required keys in validation order. Empty
	// means the databag held no data at all.
	Missing []string
}

// Error implements the error interface.
func (e *RelationDataMissingError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("no data found in relation %q data bag", e.Relation)
	}
	return fmt.Sprintf("missing attributes %v in relation %q", e.Missing, e.Relation)
}
