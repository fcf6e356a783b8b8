package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the specify-status MCP prompt.
// It instructs the AI to read and present the workflow state of each feature.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("specify-status",
		mcp.WithPromptDescription(
			"Check where each feature stands: completed phases, "+
				"complexity and what to do next.",
		),
	)
}

// Handle processes the specify-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Feature Workflow Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `specify_workflow_status` to check the features of this project.\n\n" +
						"Then:\n" +
						"1. Show each feature's completed phases in a compact table\n" +
						"2. Point out any phase that was forced with override\n" +
						"3. List the suggested next actions, most important first\n" +
						"4. Run `specify_check` and summarise any ERROR findings",
				),
			},
		},
	}, nil
}
