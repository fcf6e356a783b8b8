package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	specserver "github.com/HendryAvila/speckit/internal/server"
	"github.com/HendryAvila/speckit/internal/updater"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		project     string
		noUpdateMsg bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Long: `Serve the specify tools, prompts and resources to an AI coding tool over
MCP on stdin/stdout. Logs go to stderr.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "specify": {
        "command": "specify",
        "args": ["serve"]
      }
    }
  }`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.projectRoot(project)
			if err != nil {
				return err
			}

			deps := specserver.Deps{
				Root:         root,
				Orchestrator: a.orchestrator(root),
				Logger:       a.logger,
			}
			if a.journal != nil {
				deps.History = a.journal
			}
			s := specserver.New(deps)

			// Background version check; stdout belongs to the transport.
			if !noUpdateMsg {
				go a.checkForUpdates(cmd.Context())
			}

			stdio := server.NewStdioServer(s)
			stdio.SetErrorLogger(zap.NewStdLog(a.logger))
			a.logger.Info("serving MCP on stdio", zap.String("project", root))
			if err := stdio.Listen(cmd.Context(), a.stdin, a.stdout); err != nil && cmd.Context().Err() == nil {
				return fmt.Errorf("serving MCP: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", ".", "project directory (or any directory inside it)")
	cmd.Flags().BoolVar(&noUpdateMsg, "no-update-check", false, "skip the background release check")
	return cmd
}

// checkForUpdates prints a notice to stderr when a newer specify release
// is published. Best-effort: failures are ignored.
func (a *app) checkForUpdates(ctx context.Context) {
	result := updater.CheckVersion(ctx, specserver.Version, a.releaseSource())
	if result.UpdateAvailable {
		fmt.Fprintf(a.stderr,
			"\n  Update available: v%s -> v%s\n\n",
			result.CurrentVersion, result.LatestVersion,
		)
	}
}
