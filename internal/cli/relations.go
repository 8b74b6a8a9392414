// Package cli — relations.go implements the "k8s-svc-info relations" command.
//
// The relations command lists every relation established on the endpoint
// with its remote application, unit count, and the databag keys the remote
// application has published. It answers "who is related and have they
// announced yet" in one look.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewRelationsCommand creates the "relations" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRelationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relations",
		Short: "List relations on the endpoint",
		Long: `List every relation established on the endpoint, the application on the
other side, how many of its units have joined, and which keys it has
published in its application databag.

Examples:
  k8s-svc-info relations
  k8s-svc-info relations --json
  k8s-svc-info relations --relation metadata-grpc`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelations(cmd.Context())
		},
	}

	return cmd
}

// relationRow is one relation as the command reports it, shared between
// the text and JSON renderings.
type relationRow struct {
	ID        int      `json:"id"`
	RemoteApp string   `json:"remoteApp"`
	Units     int      `json:"units"`
	Keys      []string `json:"keys"`
}

// runRelations is the main logic function for the relations command.
func runRelations(ctx context.Context) error {
	m, _, err := newModel()
	if err != nil {
		return classify("cannot reach the hook tools", err)
	}

	rels, err := m.Relations(ctx, relationName)
	if err != nil {
		return classify(fmt.Sprintf("cannot list relations on %q", relationName), err)
	}

	rows := make([]relationRow, 0, len(rels))
	for _, rel := range rels {
		units, err := rel.Units(ctx)
		if err != nil {
			return classify(fmt.Sprintf("cannot list units of %s", rel), err)
		}
		bag, err := rel.RemoteAppData(ctx)
		if err != nil {
			return classify(fmt.Sprintf("cannot read databag of %s", rel), err)
		}

		keys := make([]string, 0, len(bag))
		for key := range bag {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		rows = append(rows, relationRow{
			ID:        rel.ID,
			RemoteApp: rel.RemoteApp,
			Units:     len(units),
			Keys:      keys,
		})
	}

	printRelationsResult(rows)
	return nil
}

// printRelationsResult outputs the relation list in text or JSON format,
// depending on the global --json flag.
func printRelationsResult(rows []relationRow) {
	if IsJSONOutput() {
		printRelationsResultJSON(rows)
	} else {
		printRelationsResultText(rows)
	}
}

// printRelationsResultJSON outputs the relation list as structured JSON.
// The top-level key is "relations" containing an array of relation objects.
func printRelationsResultJSON(rows []relationRow) {
	type resultJSON struct {
		Relations []relationRow `json:"relations"`
	}

	// An empty slice renders as [] instead of null when nothing is related.
	result := resultJSON{Relations: rows}
	if result.Relations == nil {
		result.Relations = []relationRow{}
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printRelationsResultText outputs the relation list as a human-readable
// text table with aligned columns.
//
// The table format is:
//
//	ID   REMOTE-APP            UNITS   KEYS
//	0    mlmd                  1       name,port
//	1    metadata-writer       2       -
func printRelationsResultText(rows []relationRow) {
	if len(rows) == 0 {
		fmt.Println("No relations found.")
		return
	}

	fmt.Printf("%-4s %-21s %-7s %s\n", "ID", "REMOTE-APP", "UNITS", "KEYS")
	for _, row := range rows {
		keys := "-"
		if len(row.Keys) > 0 {
			keys = strings.Join(row.Keys, ",")
		}
		fmt.Printf("%-4d %-21s %-7d %s\n", row.ID, row.RemoteApp, row.Units, keys)
	}
}
