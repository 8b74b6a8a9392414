// Package cli implements the cobra-based CLI commands for k8s-svc-info.
//
// Each subcommand (get, send, relations, probe) is defined in its own file
// within this package. This file defines the root command that serves as
// the parent for all subcommands and handles global flags.
//
// The binary is meant to run inside a Juju hook, where the hook tools are
// available; outside one, commands fail with ExitNoHookContext.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/charmed-mlops/mlops-libs/charm"
	"github.com/charmed-mlops/mlops-libs/charm/jujuc"
	"github.com/charmed-mlops/mlops-libs/charmlog"
	"github.com/charmed-mlops/mlops-libs/k8ssvcinfo"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, all output uses structured JSON format for machine consumption.
	// When false (default), output uses human-readable text format.
	jsonOutput bool

	// verbose enables debug-level logging on stderr.
	verbose bool

	// relationName is the endpoint commands operate on. It defaults to
	// the conventional k8s-svc-info endpoint.
	relationName string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action. Actual
// functionality is provided by subcommands (get, send, relations, probe).
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "k8s-svc-info",
		Short: "Inspect and publish Kubernetes Service announcements over Juju relations",
		Long: `k8s-svc-info works with the k8s-service relation interface from inside
a charm hook. Requirer charms read the Service name and port a related
provider announced; provider charms publish or refresh their announcement.

All commands talk to the Juju hook tools and therefore only work inside
a hook (or a juju-exec session).`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// The logger must be configured before any subcommand runs so the
		// --verbose flag can take effect; Configure is first-caller-wins.
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			charmlog.Configure(charmlog.Config{Level: level, Service: "k8s-svc-info"})
		},
	}

	// PersistentFlags are inherited by all subcommands. This is the cobra
	// mechanism for global flags.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&relationName, "relation", "r", k8ssvcinfo.DefaultRelationName,
		"Relation endpoint name to operate on")

	// Register subcommands. Each subcommand is defined in its own file
	// (get.go, send.go, etc.) and returns a *cobra.Command.
	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewSendCommand())
	rootCmd.AddCommand(NewRelationsCommand())
	rootCmd.AddCommand(NewProbeCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into appropriate OS exit codes. CLIError types carry their own
// exit codes; other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		var cliErr *CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		// Generic error, exit with code 1.
		printError(err.Error(), nil)
		os.Exit(int(ExitGeneralError))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// newModel connects to the hook tools and scopes a model view to the
// current unit. Both pieces come from the hook environment, so this only
// succeeds inside a hook.
func newModel() (*charm.Model, *jujuc.Runner, error) {
	runner, err := jujuc.NewRunner()
	if err != nil {
		return nil, nil, err
	}

	unitName := os.Getenv("JUJU_UNIT_NAME")
	if unitName == "" {
		return nil, nil, errors.New("JUJU_UNIT_NAME is not set")
	}

	m := charm.NewModel(runner, unitName, os.Getenv("JUJU_MODEL_NAME"), os.Getenv("JUJU_MODEL_UUID"))
	return m, runner, nil
}
