package tools

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/speckit/internal/history"
)

func newJournal(t *testing.T, project string) *history.Store {
	t.Helper()
	j, err := history.Open(filepath.Join(t.TempDir(), "history.db"), project, nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

type failingLister struct{}

func (failingLister) Recent(history.Filter) ([]history.Event, error) {
	return nil, errors.New("disk on fire")
}

func TestHistoryTool_Handle_ListsProjectEvents(t *testing.T) {
	j := newJournal(t, "/proj")
	j.Record(history.KindFeature, 1, "001-login", false)
	j.Record(history.KindTransition, 1, "planned", true)
	j.Record(history.KindTransition, 2, "spec_created", false)

	tool := NewHistoryTool(j, "/proj")
	result, err := tool.Handle(context.Background(), call(map[string]interface{}{"feature_id": float64(1)}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result))

	text := getResultText(result)
	assert.Contains(t, text, "# History (2 events)")
	assert.Contains(t, text, "[transition] feature 001: planned (forced)")
	assert.Contains(t, text, "[feature] feature 001: 001-login")
	assert.NotContains(t, text, "spec_created")
}

func TestHistoryTool_Handle_OtherProjectIsEmpty(t *testing.T) {
	j := newJournal(t, "/elsewhere")
	j.Record(history.KindInstall, 0, "builtin claude", false)

	result, err := NewHistoryTool(j, "/proj").Handle(context.Background(), call(map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, "No events recorded for this project.", getResultText(result))
}

func TestHistoryTool_Handle_Errors(t *testing.T) {
	j := newJournal(t, "/proj")
	tool := NewHistoryTool(j, "/proj")

	result, err := tool.Handle(context.Background(), call(map[string]interface{}{"limit": float64(0)}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))

	result, err = tool.Handle(context.Background(), call(map[string]interface{}{"feature_id": float64(-2)}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))

	result, err = NewHistoryTool(failingLister{}, "/proj").Handle(context.Background(), call(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(result))
	assert.Contains(t, getResultText(result), "disk on fire")
}
