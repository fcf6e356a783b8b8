package resources

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/workflow"
)

func readStatus(t *testing.T, h *Handler) mcp.TextResourceContents {
	t.Helper()
	req := mcp.ReadResourceRequest{}
	req.Params.URI = StatusURI
	contents, err := h.HandleStatus(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	return text
}

func TestHandleStatus_ListsFeatures(t *testing.T) {
	root := t.TempDir()
	orch := workflow.NewOrchestrator(workflow.NewFileStore(root, nil), nil)
	for _, id := range []int{2, 1} {
		_, err := orch.Store().Init(id)
		require.NoError(t, err)
	}

	got := readStatus(t, NewHandler(orch))
	assert.Equal(t, "application/json", got.MIMEType)
	assert.Equal(t, StatusURI, got.URI)

	var all []workflow.Status
	require.NoError(t, json.Unmarshal([]byte(got.Text), &all))
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].State.FeatureID)
	assert.Equal(t, workflow.PhaseSpecCreated, all[0].Next)
}

func TestHandleStatus_CorruptStateIsReported(t *testing.T) {
	root := t.TempDir()
	orch := workflow.NewOrchestrator(workflow.NewFileStore(root, nil), nil)
	require.NoError(t, os.MkdirAll(config.StatePath(root), 0o755))
	require.NoError(t, os.WriteFile(orch.Store().(*workflow.FileStore).Path(3), []byte("{"), 0o644))

	got := readStatus(t, NewHandler(orch))
	assert.Equal(t, "text/plain", got.MIMEType)
	assert.Contains(t, got.Text, "Error:")
}

func TestStatusResource(t *testing.T) {
	res := NewHandler(nil).StatusResource()
	assert.Equal(t, StatusURI, res.URI)
	assert.Equal(t, "application/json", res.MIMEType)
}
