package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/speckit/internal/feature"
	"github.com/HendryAvila/speckit/internal/history"
)

func newFeatureCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Manage feature folders under specs/",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <description...>",
		Short: "Allocate the next feature id and scaffold its spec.md",
		Long: `Create specs/NNN-slug/spec.md from the project's spec template, start
tracking the feature's workflow state and mark it spec_created.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.projectRoot(".")
			if err != nil {
				return err
			}
			f, err := feature.Create(cmd.Context(), root, strings.Join(args, " "), a.orchestrator(root))
			if err != nil {
				return err
			}
			a.record(history.KindFeature, f.ID, f.Folder())
			fmt.Fprintf(a.stdout, "Created feature %03d: specs/%s/spec.md\n", f.ID, f.Folder())
			return nil
		},
	})
	return cmd
}
