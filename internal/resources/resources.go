// Package resources implements MCP resource handlers for "specify serve".
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (specify://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/speckit/internal/tools"
	"github.com/HendryAvila/speckit/internal/workflow"
)

// StatusURI addresses the workflow status of every feature.
const StatusURI = "specify://workflow/status"

// Handler manages specify resource endpoints.
type Handler struct {
	orch *workflow.Orchestrator
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(orch *workflow.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// StatusResource returns the MCP resource definition for workflow status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"Feature Workflow Status",
		mcp.WithResourceDescription("Completed phases, complexity and suggested next actions for every feature"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns every feature's status as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	all, err := tools.Statuses(h.orch)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
