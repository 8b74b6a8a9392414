// Package cli — send.go implements the "k8s-svc-info send" command.
//
// The send command publishes a Kubernetes Service announcement into the
// application databag of every relation on the endpoint, the CLI
// counterpart of the k8ssvcinfo provider. Only the leader unit may send.
//
// The announcement comes either from the --name/--port flags or from a
// JSON file (--from-file). The file may contain comments and trailing
// commas, the same relaxed syntax devcontainer.json uses, so hooks can
// keep an annotated announcement file in the charm directory.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charmlog"
	"github.com/charmed-mlops/mlops-libs/k8ssvcinfo"
)

// sendFlags holds the flag values for the send command.
// These are bound to cobra flags in NewSendCommand.
type sendFlags struct {
	// name and port describe the Service directly on the command line.
	name string
	port string

	// fromFile reads the announcement from a JSON(C) file instead.
	// Mutually exclusive with name/port.
	fromFile string
}

// NewSendCommand creates the "send" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewSendCommand() *cobra.Command {
	flags := &sendFlags{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish a Kubernetes Service announcement to related applications",
		Long: `Publish the name and port of a Kubernetes Service into the application
databag of every relation on the endpoint.

The command completes successfully even when no application is related;
the announcement is simply stored for nobody. Only the leader unit can
write application databags, so non-leaders fail with exit code 6.

Examples:
  k8s-svc-info send --name metadata-grpc-service --port 8080
  k8s-svc-info send --from-file ./svc-info.json
  k8s-svc-info send --json --name mlmd --port 3306`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "Kubernetes Service name to announce")
	cmd.Flags().StringVar(&flags.port, "port", "", "Kubernetes Service port to announce")
	cmd.Flags().StringVar(&flags.fromFile, "from-file", "",
		"Read the announcement from a JSON file (comments and trailing commas allowed)")

	return cmd
}

// runSend is the main logic function for the send command.
// It resolves the announcement from flags or file, validates it, checks
// leadership, and publishes to every relation on the endpoint.
func runSend(ctx context.Context, flags *sendFlags) error {
	info, err := resolveSendInfo(flags)
	if err != nil {
		return err
	}
	if err := info.Validate(); err != nil {
		return WrapCLIError(ExitGeneralError, "invalid service info", err)
	}

	m, runner, err := newModel()
	if err != nil {
		return classify("cannot reach the hook tools", err)
	}

	log := charmlog.WithComponent("cli")

	leader, err := runner.IsLeader(ctx)
	if err != nil {
		return classify("cannot determine leadership", err)
	}
	if !leader {
		return WrapCLIError(ExitNotLeader, "cannot publish service info", charm.ErrNotLeader)
	}

	// The relation count is only for output; Publish itself treats zero
	// relations as success.
	rels, err := m.Relations(ctx, relationName)
	if err != nil {
		return classify(fmt.Sprintf("cannot list relations on %q", relationName), err)
	}

	log.Debug().
		Str(charmlog.FieldEndpoint, relationName).
		Int("relations", len(rels)).
		Msg("publishing service announcement")

	if err := k8ssvcinfo.Publish(ctx, m, relationName, info); err != nil {
		return classify(fmt.Sprintf("cannot publish service info on %q", relationName), err)
	}

	printSendResult(info, len(rels))
	return nil
}

// resolveSendInfo builds the announcement from the command flags,
// enforcing the flag exclusivity rules.
func resolveSendInfo(flags *sendFlags) (k8ssvcinfo.ServiceInfo, error) {
	if flags.fromFile != "" {
		if flags.name != "" || flags.port != "" {
			return k8ssvcinfo.ServiceInfo{}, NewCLIError(ExitGeneralError,
				"--from-file cannot be combined with --name or --port")
		}
		return readInfoFile(flags.fromFile)
	}

	if flags.name == "" || flags.port == "" {
		return k8ssvcinfo.ServiceInfo{}, NewCLIError(ExitGeneralError,
			"either --from-file or both --name and --port are required")
	}
	return k8ssvcinfo.ServiceInfo{Name: flags.name, Port: flags.port}, nil
}

// readInfoFile parses an announcement file. jsonc.ToJSON strips comments
// and trailing commas before standard JSON decoding; the port may be a
// JSON number or string.
func readInfoFile(path string) (k8ssvcinfo.ServiceInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return k8ssvcinfo.ServiceInfo{}, WrapCLIError(ExitGeneralError,
			fmt.Sprintf("cannot read %q", path), err)
	}

	var payload struct {
		Name string `json:"name"`
		Port any    `json:"port"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(raw), &payload); err != nil {
		return k8ssvcinfo.ServiceInfo{}, WrapCLIError(ExitGeneralError,
			fmt.Sprintf("cannot parse %q", path), err)
	}

	var port string
	switch v := payload.Port.(type) {
	case string:
		port = v
	case float64:
		// encoding/json decodes every JSON number as float64.
		port = strconv.Itoa(int(v))
	case nil:
		port = ""
	default:
		return k8ssvcinfo.ServiceInfo{}, NewCLIError(ExitGeneralError,
			fmt.Sprintf("unsupported port type %T in %q", v, path))
	}

	return k8ssvcinfo.ServiceInfo{Name: payload.Name, Port: port}, nil
}

// printSendResult outputs the send command result in text or JSON format.
func printSendResult(info k8ssvcinfo.ServiceInfo, relationCount int) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"action":        "published",
			"name":          info.Name,
			"port":          info.Port,
			"relationCount": relationCount,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Published service %q port %s to %d relation(s)\n",
		info.Name, info.Port, relationCount)
}
