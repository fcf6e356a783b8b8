package tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/speckit/internal/workflow"
)

// --- specify_workflow_status ---

// WorkflowStatusTool handles the specify_workflow_status MCP tool.
type WorkflowStatusTool struct {
	orch *workflow.Orchestrator
}

// NewWorkflowStatusTool creates a WorkflowStatusTool.
func NewWorkflowStatusTool(orch *workflow.Orchestrator) *WorkflowStatusTool {
	return &WorkflowStatusTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *WorkflowStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("specify_workflow_status",
		mcp.WithDescription(
			"Show a feature's workflow phases, its complexity score and the suggested next actions. "+
				"Without feature_id every feature is listed.",
		),
		mcp.WithNumber("feature_id",
			mcp.Description("Feature id (the NNN of specs/NNN-slug)"),
		),
	)
}

// Handle processes the specify_workflow_status tool call.
func (t *WorkflowStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, one, err := featureID(req, "feature_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if one {
		st, err := t.orch.Status(id)
		if err != nil {
			return stateError(err)
		}
		return jsonResult(st)
	}

	all, err := Statuses(t.orch)
	if err != nil {
		return stateError(err)
	}
	return jsonResult(all)
}

// Statuses summarises every feature of the project in id order.
func Statuses(orch *workflow.Orchestrator) ([]*workflow.Status, error) {
	states, err := orch.Store().List()
	if err != nil {
		return nil, err
	}
	out := make([]*workflow.Status, 0, len(states))
	for _, st := range states {
		out = append(out, workflow.Summarize(st))
	}
	return out, nil
}

// --- specify_workflow_advance ---

// WorkflowAdvanceTool handles the specify_workflow_advance MCP tool.
type WorkflowAdvanceTool struct {
	orch *workflow.Orchestrator
}

// NewWorkflowAdvanceTool creates a WorkflowAdvanceTool.
func NewWorkflowAdvanceTool(orch *workflow.Orchestrator) *WorkflowAdvanceTool {
	return &WorkflowAdvanceTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *WorkflowAdvanceTool) Definition() mcp.Tool {
	phases := make([]string, 0, len(workflow.Phases)+1)
	for _, p := range workflow.Phases {
		phases = append(phases, string(p))
	}
	phases = append(phases, workflow.FlagResearchComplete)

	return mcp.NewTool("specify_workflow_advance",
		mcp.WithDescription(
			"Mark a workflow phase complete for a feature. Every earlier phase must already be complete; "+
				"a blocked call explains what is missing. Set override only when the user explicitly "+
				"asks to skip ahead. research_complete records finished research and never blocks.",
		),
		mcp.WithNumber("feature_id",
			mcp.Required(),
			mcp.Description("Feature id (the NNN of specs/NNN-slug)"),
		),
		mcp.WithString("phase",
			mcp.Required(),
			mcp.Description("Phase to mark complete"),
			mcp.Enum(phases...),
		),
		mcp.WithBoolean("override",
			mcp.Description("Force the transition even though earlier phases are incomplete"),
			mcp.DefaultBool(false),
		),
	)
}

// Handle processes the specify_workflow_advance tool call.
func (t *WorkflowAdvanceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok, err := featureID(req, "feature_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError("'feature_id' is required"), nil
	}

	name := req.GetString("phase", "")
	if name == workflow.FlagResearchComplete {
		st, err := t.orch.MarkResearch(id)
		if err != nil {
			return stateError(err)
		}
		return jsonResult(st)
	}
	phase, err := workflow.ParsePhase(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.orch.Transition(ctx, id, phase, req.GetBool("override", false))
	if err != nil {
		return stateError(err)
	}
	return jsonResult(res)
}

// stateError turns expected workflow failures into tool errors.
func stateError(err error) (*mcp.CallToolResult, error) {
	var (
		pre     *workflow.PreconditionError
		corrupt *workflow.CorruptStateError
	)
	switch {
	case errors.As(err, &pre), errors.As(err, &corrupt),
		errors.Is(err, workflow.ErrNotInitialized), errors.Is(err, workflow.ErrLocked):
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}
