package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/feature"
	"github.com/HendryAvila/speckit/internal/workflow"
)

// FeatureCreateTool handles the specify_feature_create MCP tool.
type FeatureCreateTool struct {
	root string
	orch *workflow.Orchestrator
}

// NewFeatureCreateTool creates a FeatureCreateTool for the project at root.
func NewFeatureCreateTool(root string, orch *workflow.Orchestrator) *FeatureCreateTool {
	return &FeatureCreateTool{root: root, orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *FeatureCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("specify_feature_create",
		mcp.WithDescription(
			"Start a new feature: allocates the next id, creates specs/NNN-slug/spec.md "+
				"from the project's spec template and marks the feature spec_created. "+
				"Fill in the generated spec.md next.",
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("What the feature should do, in the user's words"),
		),
	)
}

// Handle processes the specify_feature_create tool call.
func (t *FeatureCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description := req.GetString("description", "")
	if description == "" {
		return mcp.NewToolResultError("'description' is required"), nil
	}

	f, err := feature.Create(ctx, t.root, description, t.orch)
	if err != nil {
		if errors.Is(err, config.ErrNotInitialized) || errors.Is(err, workflow.ErrAlreadyInitialized) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("creating feature: %w", err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"# Feature %03d created\n\n"+
			"**Folder:** `specs/%s/`\n"+
			"**Spec:** `specs/%s/spec.md`\n\n"+
			"## Next Step\n\n"+
			"Fill in spec.md from the user's description, then call `specify_classify` with "+
			"feature_id %d and run `specify_check` with scope frontmatter.",
		f.ID, f.Folder(), f.Folder(), f.ID,
	)), nil
}
