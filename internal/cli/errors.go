package cli

import (
	"errors"
	"fmt"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charm/jujuc"
	"github.com/charmed-mlops/mlops-libs/k8ssvcinfo"
)

// ExitCode defines standard CLI exit codes. These codes allow charm hooks
// and scripts to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitNoHookContext indicates the command ran outside a Juju hook,
	// where the hook tools are unavailable.
	ExitNoHookContext ExitCode = 2

	// ExitToolFailed indicates a hook tool subprocess failed.
	ExitToolFailed ExitCode = 3

	// ExitRelationMissing indicates the endpoint has no usable relation:
	// either nothing is related or more than one application is.
	ExitRelationMissing ExitCode = 4

	// ExitRelationDataInvalid indicates the related application published
	// an empty or incomplete announcement.
	ExitRelationDataInvalid ExitCode = 5

	// ExitNotLeader indicates the operation needs application leadership
	// and this unit is not the leader.
	ExitNotLeader ExitCode = 6

	// ExitServiceUnreachable indicates the announced service did not
	// answer a probe.
	ExitServiceUnreachable ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// classify wraps a domain error in a CLIError with the exit code its type
// calls for. Errors no case recognizes map to ExitGeneralError.
func classify(message string, err error) *CLIError {
	code := ExitGeneralError

	var (
		toolErr     *jujuc.ToolError
		relMissing  *k8ssvcinfo.RelationMissingError
		dataMissing *k8ssvcinfo.RelationDataMissingError
		tooMany     *charm.TooManyRelatedAppsError
	)

	switch {
	case errors.Is(err, jujuc.ErrNoHookContext):
		code = ExitNoHookContext
	case errors.Is(err, charm.ErrNotLeader):
		code = ExitNotLeader
	case errors.As(err, &toolErr):
		code = ExitToolFailed
	case errors.As(err, &relMissing):
		code = ExitRelationMissing
	case errors.As(err, &tooMany):
		code = ExitRelationMissing
	case errors.As(err, &dataMissing):
		code = ExitRelationDataInvalid
	}

	return WrapCLIError(code, message, err)
}
