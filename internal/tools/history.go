package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/speckit/internal/history"
)

// EventLister reads journal events. *history.Store satisfies it.
type EventLister interface {
	Recent(f history.Filter) ([]history.Event, error)
}

// HistoryTool handles the specify_history MCP tool.
type HistoryTool struct {
	journal EventLister
	project string
}

// NewHistoryTool creates a HistoryTool scoped to project.
func NewHistoryTool(journal EventLister, project string) *HistoryTool {
	return &HistoryTool{journal: journal, project: project}
}

// Definition returns the MCP tool definition for specify_history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("specify_history",
		mcp.WithDescription(
			"List what happened in this project, newest first: template installs, "+
				"feature creation, phase transitions (forced ones are marked) and "+
				"complexity classifications. Use it to see why a phase was skipped.",
		),
		mcp.WithNumber("feature_id",
			mcp.Description("Only events for this feature"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of events (default: %d)", history.DefaultLimit)),
		),
	)
}

// Handle processes the specify_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _, err := featureID(req, "feature_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", history.DefaultLimit)
	if limit <= 0 {
		return mcp.NewToolResultError("'limit' must be a positive integer"), nil
	}

	events, err := t.journal.Recent(history.Filter{Project: t.project, FeatureID: id, Limit: limit})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading history failed: %v", err)), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText("No events recorded for this project."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# History (%d events)\n\n", len(events))
	for _, e := range events {
		feat := "-"
		if e.FeatureID > 0 {
			feat = fmt.Sprintf("%03d", e.FeatureID)
		}
		fmt.Fprintf(&b, "- %s [%s] feature %s: %s", e.CreatedAt.UTC().Format(time.RFC3339), e.Kind, feat, e.Detail)
		if e.Forced {
			b.WriteString(" (forced)")
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
