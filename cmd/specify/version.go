package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/speckit/internal/bundle"
	specserver "github.com/HendryAvila/speckit/internal/server"
	"github.com/HendryAvila/speckit/internal/updater"
)

func newVersionCmd(a *app) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the specify version",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "specify v%s\n", specserver.Version)
			if cached, err := a.manager().CachedVersions(); err == nil && len(cached) > 0 {
				fmt.Fprintf(a.stdout, "cached templates: %s\n", cached[0])
			}
			if !check {
				return nil
			}
			result := updater.CheckVersion(cmd.Context(), specserver.Version, a.releaseSource())
			switch {
			case result.LatestVersion == "":
				fmt.Fprintln(a.stdout, "could not determine the latest release")
			case result.UpdateAvailable:
				fmt.Fprintf(a.stdout, "update available: v%s\n", result.LatestVersion)
			default:
				fmt.Fprintln(a.stdout, "up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check whether a newer release is published")
	return cmd
}

// releaseSource returns the GitHub release lookup used for version checks.
func (a *app) releaseSource() updater.LatestSource {
	return bundle.NewGitHubSource(a.settings.GitHub, a.settings.Network.Timeout)
}
