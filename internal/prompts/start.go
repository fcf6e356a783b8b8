// Package prompts implements MCP prompt handlers for "specify serve".
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// FeaturePrompt handles the specify-feature MCP prompt.
// It guides the AI from a feature idea to a scored, checked spec.md.
type FeaturePrompt struct{}

// NewFeaturePrompt creates a FeaturePrompt.
func NewFeaturePrompt() *FeaturePrompt {
	return &FeaturePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *FeaturePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("specify-feature",
		mcp.WithPromptDescription(
			"Start a new feature. Creates the feature folder and spec, "+
				"scores its complexity and checks the result.",
		),
		mcp.WithArgument("description",
			mcp.ArgumentDescription("What the feature should do"),
		),
	)
}

// Handle processes the specify-feature prompt request.
func (p *FeaturePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	description := ""
	if args := req.Params.Arguments; args != nil {
		description = args["description"]
	}

	ask := "1. Ask me to describe the feature in a few sentences\n"
	title := "Start a new feature"
	if description != "" {
		ask = fmt.Sprintf("1. Use this description: %q\n", description)
		title = fmt.Sprintf("Start feature: %s", description)
	}

	return &mcp.GetPromptResult{
		Description: title,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"I want to start a new feature in this project.\n\n" +
						"Please:\n" +
						ask +
						"2. Run `specify_feature_create` with that description\n" +
						"3. Run `specify_classify` with the description and the new feature_id\n" +
						"4. If the level is HIGH, research the unknowns with me before planning and then " +
						"advance the phase `research_complete`\n" +
						"5. Fill in the generated spec.md from our conversation\n" +
						"6. Run `specify_check` with scope frontmatter on the spec and fix any ERROR lines",
				),
			},
		},
	}, nil
}
