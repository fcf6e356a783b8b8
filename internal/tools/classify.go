package tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/speckit/internal/classify"
	"github.com/HendryAvila/speckit/internal/workflow"
)

// ClassifyTool handles the specify_classify MCP tool.
type ClassifyTool struct {
	orch *workflow.Orchestrator
}

// NewClassifyTool creates a ClassifyTool. orch may be nil, in which case
// scores are never persisted.
func NewClassifyTool(orch *workflow.Orchestrator) *ClassifyTool {
	return &ClassifyTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *ClassifyTool) Definition() mcp.Tool {
	return mcp.NewTool("specify_classify",
		mcp.WithDescription(
			"Score a feature description for complexity (LOW, LOW_MEDIUM, MEDIUM, HIGH) "+
				"by matching real-time, integration, security, data, stack and scale keywords. "+
				"HIGH means research should happen before planning.",
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("The feature description to classify"),
		),
		mcp.WithNumber("feature_id",
			mcp.Description("When set, the score is stored in that feature's workflow state"),
		),
	)
}

// Handle processes the specify_classify tool call.
func (t *ClassifyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description := req.GetString("description", "")
	if description == "" {
		return mcp.NewToolResultError("'description' is required"), nil
	}
	id, persist, err := featureID(req, "feature_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	score := classify.Classify(description)
	if persist {
		if t.orch == nil {
			return mcp.NewToolResultError("no project is open: cannot store the score"), nil
		}
		if _, err := t.orch.RecordComplexity(id, score); err != nil {
			if errors.Is(err, workflow.ErrNotInitialized) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
	}
	return jsonResult(score)
}
