package history

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStore(t *testing.T, project string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), project, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	s, err := Open(path, "/p", nil)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, path)
	assert.NotEmpty(t, s.RunID())
}

func TestOpen_ReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, "/p", nil)
	require.NoError(t, err)
	_, err = s.Add(KindInstall, 0, "builtin claude", false)
	require.NoError(t, err)
	first := s.RunID()
	require.NoError(t, s.Close())

	s, err = Open(path, "/p", nil)
	require.NoError(t, err)
	defer s.Close()
	assert.NotEqual(t, first, s.RunID())

	events, err := s.Recent(Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, first, events[0].RunID)
}

func TestOpen_DriverFailure(t *testing.T) {
	prev := openDB
	openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("no driver") }
	t.Cleanup(func() { openDB = prev })

	_, err := Open(filepath.Join(t.TempDir(), "h.db"), "/p", nil)
	assert.ErrorContains(t, err, "no driver")
}

func TestRecent_NewestFirstWithFilters(t *testing.T) {
	s := newTestStore(t, "/proj")
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	prev := timeNow
	timeNow = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }
	t.Cleanup(func() { timeNow = prev })

	s.Record(KindTransition, 1, "spec_created", false)
	s.Record(KindClassify, 1, "HIGH", false)
	s.Record(KindTransition, 2, "planned", true)

	all, err := s.Recent(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "planned", all[0].Detail)
	assert.True(t, all[0].Forced)
	assert.Equal(t, base.Add(3*time.Minute), all[0].CreatedAt)
	assert.Equal(t, "spec_created", all[2].Detail)

	one, err := s.Recent(Filter{FeatureID: 1})
	require.NoError(t, err)
	require.Len(t, one, 2)
	assert.Equal(t, KindClassify, one[0].Kind)

	limited, err := s.Recent(Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	other, err := s.Recent(Filter{Project: "/elsewhere"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecord_NilStoreIsNoop(t *testing.T) {
	var s *Store
	assert.NotPanics(t, func() { s.Record(KindInstall, 0, "x", false) })
	assert.NoError(t, s.Close())
}

func TestRecord_FailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s, err := Open(filepath.Join(t.TempDir(), "h.db"), "/p", zap.New(core))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s.Record(KindTransition, 1, "clarified", false)
	assert.Equal(t, 1, logs.FilterMessage("history journal write failed").Len())
}
