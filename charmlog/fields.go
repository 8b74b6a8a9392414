package charmlog

// Canonical field name constants for structured logging.
const (
	FieldComponent  = "component"
	FieldHook       = "hook"
	FieldEvent      = "event"
	FieldUnit       = "unit"
	FieldApp        = "app"
	FieldModel      = "model"
	FieldEndpoint   = "endpoint"
	FieldRelationID = "relation_id"
	FieldRemoteApp  = "remote_app"
	FieldRemoteUnit = "remote_unit"
	FieldWorkload   = "workload"
)
