// Package cli — errors_test.go contains unit tests for the exit code
// classification of domain errors. No hook environment is required.
package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charm/jujuc"
	"github.com/charmed-mlops/mlops-libs/k8ssvcinfo"
)

// TestCLIError_Error verifies both message forms.
func TestCLIError_Error(t *testing.T) {
	plain := NewCLIError(ExitGeneralError, "something went wrong")
	assert.Equal(t, "something went wrong", plain.Error())

	wrapped := WrapCLIError(ExitToolFailed, "relation-get failed", errors.New("exit status 1"))
	assert.Equal(t, "relation-get failed: exit status 1", wrapped.Error())
}

// TestCLIError_Unwrap verifies errors.Is reaches the wrapped error.
func TestCLIError_Unwrap(t *testing.T) {
	err := WrapCLIError(ExitNotLeader, "cannot publish", charm.ErrNotLeader)
	assert.ErrorIs(t, err, charm.ErrNotLeader)
}

// TestClassify verifies each domain error type maps to its exit code,
// including when wrapped deeper in an error chain.
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ExitCode
	}{
		{
			name: "no hook context",
			err:  jujuc.ErrNoHookContext,
			want: ExitNoHookContext,
		},
		{
			name: "no hook context wrapped",
			err:  fmt.Errorf("connect: %w", jujuc.ErrNoHookContext),
			want: ExitNoHookContext,
		},
		{
			name: "not leader",
			err:  fmt.Errorf("cannot send service info: %w", charm.ErrNotLeader),
			want: ExitNotLeader,
		},
		{
			name: "tool failure",
			err:  &jujuc.ToolError{Tool: "relation-set", Err: errors.New("exit status 1"), Stderr: "permission denied"},
			want: ExitToolFailed,
		},
		{
			name: "relation missing",
			err:  &k8ssvcinfo.RelationMissingError{Relation: "k8s-svc-info"},
			want: ExitRelationMissing,
		},
		{
			name: "too many related apps",
			err:  &charm.TooManyRelatedAppsError{Relation: "k8s-svc-info", Count: 2, Limit: 1},
			want: ExitRelationMissing,
		},
		{
			name: "relation data empty",
			err:  &k8ssvcinfo.RelationDataMissingError{Relation: "k8s-svc-info"},
			want: ExitRelationDataInvalid,
		},
		{
			name: "relation data incomplete",
			err:  &k8ssvcinfo.RelationDataMissingError{Relation: "k8s-svc-info", Missing: []string{"port"}},
			want: ExitRelationDataInvalid,
		},
		{
			name: "unrecognized error",
			err:  errors.New("boom"),
			want: ExitGeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cliErr := classify("operation failed", tt.err)
			require.NotNil(t, cliErr)
			assert.Equal(t, tt.want, cliErr.Code)
			assert.Equal(t, "operation failed", cliErr.Message)
			assert.ErrorIs(t, cliErr, tt.err)
		})
	}
}
