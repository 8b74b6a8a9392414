// Package cli — get.go implements the "k8s-svc-info get" command.
//
// The get command reads the Kubernetes Service announcement the related
// provider application published on the endpoint and prints it. It is the
// CLI counterpart of the k8ssvcinfo requirer.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/charmed-mlops/mlops-libs/charmlog"
	"github.com/charmed-mlops/mlops-libs/k8ssvcinfo"
)

// NewGetCommand creates the "get" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read the announced Kubernetes Service name and port",
		Long: `Read the Kubernetes Service announcement from the single application
related on the endpoint.

Exit codes distinguish the failure modes: 4 when nothing (or more than
one application) is related, 5 when the related application has not
published a complete announcement yet.

Examples:
  k8s-svc-info get
  k8s-svc-info get --json
  k8s-svc-info get --relation metadata-grpc`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGet(cmd.Context())
		},
	}

	return cmd
}

// runGet is the main logic function for the get command.
func runGet(ctx context.Context) error {
	m, _, err := newModel()
	if err != nil {
		return classify("cannot reach the hook tools", err)
	}

	log := charmlog.WithComponent("cli")
	log.Debug().Str(charmlog.FieldEndpoint, relationName).Msg("fetching service announcement")

	info, err := k8ssvcinfo.Fetch(ctx, m, relationName)
	if err != nil {
		return classify(fmt.Sprintf("cannot read service info on %q", relationName), err)
	}

	printGetResult(info)
	return nil
}

// printGetResult outputs the announcement in text or JSON format,
// depending on the global --json flag.
func printGetResult(info k8ssvcinfo.ServiceInfo) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("name: %s\n", info.Name)
	fmt.Printf("port: %s\n", info.Port)
}
