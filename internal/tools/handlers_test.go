package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/speckit/internal/classify"
	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/workflow"
)

// --- Test helpers ---

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// newProject creates an initialized project with one feature at spec_created.
func newProject(t *testing.T) (string, *workflow.Orchestrator) {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{".specify/templates", ".specify/scripts", "specs/001-login"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755))
	}
	require.NoError(t, os.MkdirAll(config.StatePath(root), 0o755))

	orch := workflow.NewOrchestrator(workflow.NewFileStore(root, nil), nil)
	_, err := orch.Store().Init(1)
	require.NoError(t, err)
	_, err = orch.Transition(context.Background(), 1, workflow.PhaseSpecCreated, false)
	require.NoError(t, err)
	return root, orch
}

// --- resolveIn ---

func TestResolveIn(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "proj")

	got, err := resolveIn(root, "")
	require.NoError(t, err)
	assert.Equal(t, root, got)

	got, err = resolveIn(root, "specs/001-login/spec.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "specs", "001-login", "spec.md"), got)

	for _, bad := range []string{"..", "../other", "specs/../../etc", filepath.Join(string(filepath.Separator), "etc")} {
		_, err := resolveIn(root, bad)
		assert.Error(t, err, bad)
	}
}

// --- CheckTool ---

func TestCheckTool_Handle_Naming(t *testing.T) {
	root, _ := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "specs", "001-login", "My_Plan.md"), []byte("# plan\n"), 0o644))

	result, err := NewCheckTool(root, nil).Handle(context.Background(), call(map[string]interface{}{
		"scope": "naming",
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result), getResultText(result))

	assert.Equal(t,
		"[WARN] specs/001-login/My_Plan.md - file name is not lowercase-with-hyphens (suggestion: rename to my-plan.md)\n"+
			"[INFO] Naming validation complete: 0 error(s), 1 warning(s)\n",
		getResultText(result))
}

func TestCheckTool_Handle_AllScopesInOrder(t *testing.T) {
	root, _ := newProject(t)

	result, err := NewCheckTool(root, nil).Handle(context.Background(), call(map[string]interface{}{}))
	require.NoError(t, err)
	text := getResultText(result)

	structure := strings.Index(text, "Structure validation complete")
	naming := strings.Index(text, "Naming validation complete")
	front := strings.Index(text, "Frontmatter validation complete")
	require.True(t, structure >= 0 && naming >= 0 && front >= 0, text)
	assert.Less(t, structure, naming)
	assert.Less(t, naming, front)
}

func TestCheckTool_Handle_FeatureFolder(t *testing.T) {
	root, _ := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "specs", "001-login", "spec.md"), []byte("# no metadata\n"), 0o644))

	result, err := NewCheckTool(root, nil).Handle(context.Background(), call(map[string]interface{}{
		"path": "specs/001-login",
	}))
	require.NoError(t, err)
	text := getResultText(result)
	assert.Contains(t, text, "Structure validation complete: 0 error(s)")
	assert.Contains(t, text, "[ERROR] specs/001-login/spec.md:1 - missing frontmatter block")
	assert.NotContains(t, text, "specs directory not found")
}

func TestCheckTool_Handle_Rejections(t *testing.T) {
	root, _ := newProject(t)
	tool := NewCheckTool(root, nil)

	tests := map[string]map[string]interface{}{
		"escaping path":   {"path": "../elsewhere"},
		"unknown scope":   {"scope": "spelling"},
		"unknown backend": {"backend": "python"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := tool.Handle(context.Background(), call(args))
			require.NoError(t, err)
			assert.True(t, isErrorResult(result))
		})
	}
}

// --- ClassifyTool ---

func TestClassifyTool_Handle_ReturnsScore(t *testing.T) {
	result, err := NewClassifyTool(nil).Handle(context.Background(), call(map[string]interface{}{
		"description": "A static about page",
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result), getResultText(result))

	var score classify.Score
	require.NoError(t, json.Unmarshal([]byte(getResultText(result)), &score))
	assert.Equal(t, classify.Classify("A static about page"), score)
}

func TestClassifyTool_Handle_PersistsScore(t *testing.T) {
	_, orch := newProject(t)
	description := "Real-time collaborative editing with Stripe payments and OAuth login"

	result, err := NewClassifyTool(orch).Handle(context.Background(), call(map[string]interface{}{
		"description": description,
		"feature_id":  1,
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result), getResultText(result))

	st, err := orch.Store().Read(1)
	require.NoError(t, err)
	require.NotNil(t, st.Complexity)
	assert.Equal(t, classify.Classify(description).Level, st.Complexity.Level)
}

func TestClassifyTool_Handle_Errors(t *testing.T) {
	_, orch := newProject(t)
	tool := NewClassifyTool(orch)

	tests := map[string]map[string]interface{}{
		"missing description": {},
		"bad feature id":      {"description": "x", "feature_id": -2},
		"unknown feature":     {"description": "x", "feature_id": 42},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := tool.Handle(context.Background(), call(args))
			require.NoError(t, err)
			assert.True(t, isErrorResult(result))
		})
	}

	result, err := NewClassifyTool(nil).Handle(context.Background(), call(map[string]interface{}{
		"description": "x", "feature_id": 1,
	}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))
}

// --- WorkflowStatusTool ---

func TestWorkflowStatusTool_Handle_OneFeature(t *testing.T) {
	_, orch := newProject(t)

	result, err := NewWorkflowStatusTool(orch).Handle(context.Background(), call(map[string]interface{}{
		"feature_id": 1,
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result), getResultText(result))

	var st workflow.Status
	require.NoError(t, json.Unmarshal([]byte(getResultText(result)), &st))
	assert.Equal(t, workflow.PhaseSpecCreated, st.Current)
	assert.Equal(t, workflow.PhaseClarified, st.Next)
	assert.NotEmpty(t, st.Suggestions)
}

func TestWorkflowStatusTool_Handle_AllFeatures(t *testing.T) {
	_, orch := newProject(t)
	_, err := orch.Store().Init(2)
	require.NoError(t, err)

	result, err := NewWorkflowStatusTool(orch).Handle(context.Background(), call(map[string]interface{}{}))
	require.NoError(t, err)

	var all []workflow.Status
	require.NoError(t, json.Unmarshal([]byte(getResultText(result)), &all))
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].State.FeatureID)
	assert.Equal(t, 2, all[1].State.FeatureID)
}

func TestWorkflowStatusTool_Handle_UnknownFeature(t *testing.T) {
	_, orch := newProject(t)

	result, err := NewWorkflowStatusTool(orch).Handle(context.Background(), call(map[string]interface{}{
		"feature_id": 9,
	}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))
	assert.Contains(t, getResultText(result), "not initialized")
}

// --- WorkflowAdvanceTool ---

func TestWorkflowAdvanceTool_Handle_NextPhase(t *testing.T) {
	_, orch := newProject(t)

	result, err := NewWorkflowAdvanceTool(orch).Handle(context.Background(), call(map[string]interface{}{
		"feature_id": 1,
		"phase":      "clarified",
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result), getResultText(result))

	st, err := orch.Store().Read(1)
	require.NoError(t, err)
	assert.True(t, st.Completed(workflow.PhaseClarified))
}

func TestWorkflowAdvanceTool_Handle_BlockedExplainsMissing(t *testing.T) {
	_, orch := newProject(t)

	result, err := NewWorkflowAdvanceTool(orch).Handle(context.Background(), call(map[string]interface{}{
		"feature_id": 1,
		"phase":      "tasks_generated",
	}))
	require.NoError(t, err)
	require.True(t, isErrorResult(result))
	assert.Contains(t, getResultText(result), "clarified, planned")

	st, err := orch.Store().Read(1)
	require.NoError(t, err)
	assert.False(t, st.Completed(workflow.PhaseTasksGenerated))
}

func TestWorkflowAdvanceTool_Handle_Override(t *testing.T) {
	_, orch := newProject(t)

	result, err := NewWorkflowAdvanceTool(orch).Handle(context.Background(), call(map[string]interface{}{
		"feature_id": 1,
		"phase":      "tasks_generated",
		"override":   true,
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result), getResultText(result))

	st, err := orch.Store().Read(1)
	require.NoError(t, err)
	assert.True(t, st.Completed(workflow.PhaseTasksGenerated))
	assert.False(t, st.Completed(workflow.PhaseClarified))
}

func TestWorkflowAdvanceTool_Handle_Research(t *testing.T) {
	_, orch := newProject(t)

	result, err := NewWorkflowAdvanceTool(orch).Handle(context.Background(), call(map[string]interface{}{
		"feature_id": 1,
		"phase":      workflow.FlagResearchComplete,
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result), getResultText(result))

	st, err := orch.Store().Read(1)
	require.NoError(t, err)
	assert.True(t, st.Has(workflow.FlagResearchComplete))
}

func TestWorkflowAdvanceTool_Handle_BadArguments(t *testing.T) {
	_, orch := newProject(t)
	tool := NewWorkflowAdvanceTool(orch)

	tests := map[string]map[string]interface{}{
		"missing feature id": {"phase": "clarified"},
		"unknown phase":      {"feature_id": 1, "phase": "shipped"},
		"unknown feature":    {"feature_id": 5, "phase": "spec_created"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := tool.Handle(context.Background(), call(args))
			require.NoError(t, err)
			assert.True(t, isErrorResult(result))
		})
	}
}

// --- FeatureCreateTool ---

func TestFeatureCreateTool_Handle_Success(t *testing.T) {
	root, orch := newProject(t)

	result, err := NewFeatureCreateTool(root, orch).Handle(context.Background(), call(map[string]interface{}{
		"description": "Export invoices as CSV",
	}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result), getResultText(result))

	text := getResultText(result)
	assert.Contains(t, text, "# Feature 002 created")
	assert.Contains(t, text, "specs/002-export-invoices-as-csv/spec.md")
	assert.FileExists(t, filepath.Join(root, "specs", "002-export-invoices-as-csv", "spec.md"))

	st, err := orch.Store().Read(2)
	require.NoError(t, err)
	assert.True(t, st.Completed(workflow.PhaseSpecCreated))
}

func TestFeatureCreateTool_Handle_Errors(t *testing.T) {
	root, orch := newProject(t)

	result, err := NewFeatureCreateTool(root, orch).Handle(context.Background(), call(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))

	bare := t.TempDir()
	result, err = NewFeatureCreateTool(bare, orch).Handle(context.Background(), call(map[string]interface{}{
		"description": "anything",
	}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))
}
