// Package cli — probe.go implements the "k8s-svc-info probe" command.
//
// The probe command fetches the announced Service and opens a TCP
// connection to it, reporting the observed latency. Inside the cluster the
// Service name resolves through cluster DNS, so a successful probe means
// the announcement points at something actually listening.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/charmed-mlops/mlops-libs/charmlog"
	"github.com/charmed-mlops/mlops-libs/k8ssvcinfo"
)

// probeFlags holds the flag values for the probe command.
type probeFlags struct {
	// timeout bounds the connection attempt.
	timeout time.Duration
}

// NewProbeCommand creates the "probe" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewProbeCommand() *cobra.Command {
	flags := &probeFlags{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check TCP reachability of the announced service",
		Long: `Fetch the Service announcement from the related provider and attempt a
TCP connection to <name>:<port>.

An unreachable service exits with code 7, distinguishing "the provider
announced something dead" from the relation errors of get (codes 4-5).

Examples:
  k8s-svc-info probe
  k8s-svc-info probe --timeout 10s --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd.Context(), flags)
		},
	}

	cmd.Flags().DurationVar(&flags.timeout, "timeout", 5*time.Second,
		"Maximum time to wait for the connection")

	return cmd
}

// runProbe is the main logic function for the probe command.
func runProbe(ctx context.Context, flags *probeFlags) error {
	m, _, err := newModel()
	if err != nil {
		return classify("cannot reach the hook tools", err)
	}

	info, err := k8ssvcinfo.Fetch(ctx, m, relationName)
	if err != nil {
		return classify(fmt.Sprintf("cannot read service info on %q", relationName), err)
	}

	addr := net.JoinHostPort(info.Name, info.Port)

	log := charmlog.WithComponent("cli")
	log.Debug().Str("addr", addr).Dur("timeout", flags.timeout).Msg("probing service")

	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, flags.timeout)
	if err != nil {
		return WrapCLIError(ExitServiceUnreachable,
			fmt.Sprintf("service %s is unreachable", addr), err)
	}
	_ = conn.Close()
	latency := time.Since(start)

	printProbeResult(addr, latency)
	return nil
}

// printProbeResult outputs the probe result in text or JSON format.
func printProbeResult(addr string, latency time.Duration) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"addr":      addr,
			"reachable": true,
			"latencyMs": latency.Milliseconds(),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Service %s is reachable (%s)\n", addr, latency.Round(time.Millisecond))
}
