// specify: spec-driven development toolkit.
//
// specify installs versioned template bundles into a project, validates
// the resulting layout and artifacts, scores feature complexity and tracks
// each feature through the workflow phases. "specify serve" exposes the
// same operations to AI coding tools over MCP (stdio transport).
//
// Usage:
//
//	specify init [target]          # Install templates for an AI platform
//	specify check [path]           # Validate structure, naming, frontmatter
//	specify classify [text|-]      # Score feature complexity
//	specify feature create <text>  # Scaffold specs/NNN-slug/spec.md
//	specify workflow status        # Show phase progress
//	specify serve                  # Start the MCP server
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	specserver "github.com/HendryAvila/speckit/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns its exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return report(stderr, root.ExecuteContext(ctx))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "specify",
		Short: "Spec-driven development toolkit",
		Long: `specify bootstraps a project with versioned templates, validates the
layout and artifact metadata, scores feature complexity and tracks every
feature through the workflow:

  initialized -> spec_created -> clarified -> planned -> tasks_generated -> implementing -> done

Validation findings are advisory and never change the exit code.`,
		Version:       specserver.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usagef("%v", err)
	})

	root.PersistentFlags().StringVar(&a.settingsPath, "config", "", "settings file (default ~/.config/specify/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newInitCmd(a),
		newCheckCmd(a),
		newClassifyCmd(a),
		newFeatureCmd(a),
		newWorkflowCmd(a),
		newArtifactCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usagef("%v", err)
		}
		return nil
	}
}

// maxArgs is cobra.MaximumNArgs reported as a usage error.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return usagef("%v", err)
		}
		return nil
	}
}
