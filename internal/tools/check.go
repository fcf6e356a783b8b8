package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/validate"
)

// CheckTool handles the specify_check MCP tool.
type CheckTool struct {
	root   string
	logger *zap.Logger
}

// NewCheckTool creates a CheckTool for the project at root.
func NewCheckTool(root string, logger *zap.Logger) *CheckTool {
	return &CheckTool{root: root, logger: logger}
}

// Definition returns the MCP tool definition for registration.
func (t *CheckTool) Definition() mcp.Tool {
	return mcp.NewTool("specify_check",
		mcp.WithDescription(
			"Validate the project layout, file naming and artifact metadata. "+
				"Returns one finding per line as '[LEVEL] path[:line] - message (suggestion: text)'. "+
				"Findings are advisory; fix ERROR lines before advancing the workflow.",
		),
		mcp.WithString("path",
			mcp.Description("Project-relative directory or artifact file to check. Defaults to the project root."),
		),
		mcp.WithString("scope",
			mcp.Description("Which checker to run."),
			mcp.DefaultString("all"),
			mcp.Enum("all", "structure", "naming", "frontmatter"),
		),
		mcp.WithString("backend",
			mcp.Description("Validator implementation: the built-in one or an installed script family."),
			mcp.DefaultString("native"),
			mcp.Enum("native", "bash", "powershell"),
		),
	)
}

// Handle processes the specify_check tool call.
func (t *CheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := resolveIn(t.root, req.GetString("path", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cfg, err := config.LoadProject(t.root)
	if err != nil && !errors.Is(err, config.ErrNotInitialized) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	checkers, err := validate.Select(req.GetString("scope", "all"), func(c string) bool { return cfg.Skips(c) })
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var backend validate.Backend
	switch name := req.GetString("backend", "native"); name {
	case "native":
		backend = validate.Native{}
	case string(validate.FamilyBash), string(validate.FamilyPowerShell):
		fam := validate.Family(name)
		backend = validate.Script{Family: fam, Dir: config.ScriptPath(t.root, string(fam)), Logger: t.logger}
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown backend %q", name)), nil
	}

	reports, err := validate.NewEngine(backend, t.logger).CheckProject(ctx, t.root, target, checkers)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	for _, r := range reports {
		b.WriteString(validate.FormatLines(r.Messages))
	}
	return mcp.NewToolResultText(b.String()), nil
}
