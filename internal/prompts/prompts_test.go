package prompts

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptText(t *testing.T, result *mcp.GetPromptResult) string {
	t.Helper()
	require.Len(t, result.Messages, 1)
	assert.Equal(t, mcp.RoleUser, result.Messages[0].Role)
	text, ok := result.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestStatusPrompt(t *testing.T) {
	p := NewStatusPrompt()
	assert.Equal(t, "specify-status", p.Definition().Name)

	result, err := p.Handle(context.Background(), mcp.GetPromptRequest{})
	require.NoError(t, err)
	assert.Contains(t, promptText(t, result), "specify_workflow_status")
}

func TestFeaturePrompt_WithDescription(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"description": "CSV export"}

	result, err := NewFeaturePrompt().Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Start feature: CSV export", result.Description)
	text := promptText(t, result)
	assert.Contains(t, text, `Use this description: "CSV export"`)
	assert.Contains(t, text, "specify_feature_create")
}

func TestFeaturePrompt_AsksWithoutDescription(t *testing.T) {
	result, err := NewFeaturePrompt().Handle(context.Background(), mcp.GetPromptRequest{})
	require.NoError(t, err)
	assert.Contains(t, promptText(t, result), "Ask me to describe the feature")
}
