package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/speckit/internal/artifact"
)

func newArtifactCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Inspect and update artifact frontmatter",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <file> <status>",
		Short: "Move an artifact to a new status",
		Long: `Rewrite the status line of an artifact's frontmatter in place.

Statuses only move forward (draft, active, complete). Any status may be
archived, and archived artifacts stay archived.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to := artifact.Status(strings.ToLower(args[1]))
			if !to.Valid() {
				return usagef("unknown status %q: must be one of %s", args[1], statusNames())
			}
			from, err := artifact.SetStatus(args[0], to)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: %s -> %s\n", args[0], from, to)
			return nil
		},
	})
	return cmd
}

func statusNames() string {
	names := make([]string, len(artifact.Statuses))
	for i, s := range artifact.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
