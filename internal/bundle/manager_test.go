package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeSource serves archives from memory and can fail a number of calls.
type fakeSource struct {
	latest    string
	archives  map[string][]byte
	checksums map[string]string
	versions  []string
	failures  int

	latestCalls   int
	downloadCalls int
}

var errOffline = errors.New("dial tcp: network is unreachable")

func (f *fakeSource) Latest(ctx context.Context) (string, error) {
	f.latestCalls++
	if f.failures > 0 {
		f.failures--
		return "", errOffline
	}
	return f.latest, nil
}

func (f *fakeSource) Versions(ctx context.Context) ([]string, error) {
	return f.versions, nil
}

func (f *fakeSource) Download(ctx context.Context, version string) (*Download, error) {
	f.downloadCalls++
	if f.failures > 0 {
		f.failures--
		return nil, errOffline
	}
	data, ok := f.archives[version]
	if !ok {
		return nil, fmt.Errorf("release %s: %w", version, ErrVersionNotFound)
	}
	return &Download{Version: version, Archive: data, Checksum: f.checksums[version]}, nil
}

func newTestManager(t *testing.T, src Source) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m := NewManager(src, Options{
		CacheDir:       dir,
		Retries:        2,
		InitialBackoff: time.Millisecond,
		AttemptTimeout: time.Second,
	}, zaptest.NewLogger(t))
	return m, dir
}

func TestFetch_DownloadsAndCaches(t *testing.T) {
	src := &fakeSource{latest: "1.1.0", archives: map[string][]byte{"1.1.0": sampleArchive(t, "1.1.0")}}
	m, dir := newTestManager(t, src)

	b, err := m.Fetch(context.Background(), Latest, false)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", b.Version)
	assert.Equal(t, OriginRemote, b.Origin)

	assert.FileExists(t, filepath.Join(dir, "1.1.0.tar.gz"))
	marker, err := os.ReadFile(filepath.Join(dir, ".version"))
	require.NoError(t, err)
	assert.Equal(t, "1.1.0\n", string(marker))
}

func TestFetch_CachedVersionIsNotDownloadedAgain(t *testing.T) {
	src := &fakeSource{latest: "1.1.0", archives: map[string][]byte{"1.1.0": sampleArchive(t, "1.1.0")}}
	m, _ := newTestManager(t, src)

	_, err := m.Fetch(context.Background(), "1.1.0", false)
	require.NoError(t, err)
	b, err := m.Fetch(context.Background(), "v1.1.0", false)
	require.NoError(t, err)

	assert.Equal(t, OriginCache, b.Origin)
	assert.Equal(t, 1, src.downloadCalls)
}

func TestFetch_OfflineNeverCallsSource(t *testing.T) {
	src := &fakeSource{latest: "1.0.0", archives: map[string][]byte{"1.0.0": sampleArchive(t, "1.0.0")}}
	m, _ := newTestManager(t, src)

	_, err := m.Fetch(context.Background(), Latest, false)
	require.NoError(t, err)
	src.latestCalls, src.downloadCalls = 0, 0

	b, err := m.Fetch(context.Background(), Latest, true)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", b.Version)
	assert.Equal(t, OriginCache, b.Origin)

	b, err = m.Fetch(context.Background(), "1.0.0", true)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", b.Version)

	assert.Zero(t, src.latestCalls)
	assert.Zero(t, src.downloadCalls)
}

func TestFetch_OfflineCacheMiss(t *testing.T) {
	src := &fakeSource{}
	m, _ := newTestManager(t, src)

	_, err := m.Fetch(context.Background(), Latest, true)
	var miss *CacheMissError
	require.ErrorAs(t, err, &miss)
	assert.Equal(t, Latest, miss.Version)

	_, err = m.Fetch(context.Background(), "3.0.0", true)
	require.ErrorAs(t, err, &miss)
	assert.Equal(t, "3.0.0", miss.Version)
	assert.Contains(t, err.Error(), "without --offline")

	assert.Zero(t, src.latestCalls)
	assert.Zero(t, src.downloadCalls)
}

func TestFetch_RetriesTransientFailures(t *testing.T) {
	src := &fakeSource{
		latest:   "1.0.0",
		archives: map[string][]byte{"1.0.0": sampleArchive(t, "1.0.0")},
		failures: 2,
	}
	m, _ := newTestManager(t, src)

	b, err := m.Fetch(context.Background(), "1.0.0", false)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", b.Version)
	assert.Equal(t, 3, src.downloadCalls)
}

func TestFetch_NetworkFailureFallsBackToCache(t *testing.T) {
	src := &fakeSource{latest: "1.0.0", archives: map[string][]byte{"1.0.0": sampleArchive(t, "1.0.0")}}
	m, _ := newTestManager(t, src)
	_, err := m.Fetch(context.Background(), Latest, false)
	require.NoError(t, err)

	src.failures = 100
	b, err := m.Fetch(context.Background(), Latest, false)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", b.Version)
	assert.Equal(t, OriginCache, b.Origin)
}

func TestFetch_NetworkFailureWithoutCache(t *testing.T) {
	src := &fakeSource{failures: 100}
	m, _ := newTestManager(t, src)

	_, err := m.Fetch(context.Background(), Latest, false)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, errOffline)
	assert.Equal(t, 3, src.latestCalls, "one attempt plus two retries")
}

func TestFetch_UnknownVersionIsNotRetried(t *testing.T) {
	src := &fakeSource{
		archives: map[string][]byte{},
		versions: []string{"1.0.0", "1.2.0", "1.2.5", "2.0.0", "0.9.0"},
	}
	m, _ := newTestManager(t, src)

	_, err := m.Fetch(context.Background(), "1.2.3", false)
	var nf *VersionNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "1.2.3", nf.Version)
	assert.Equal(t, []string{"1.2.5", "1.2.0", "1.0.0"}, nf.Nearest)
	assert.Equal(t, 1, src.downloadCalls)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestFetch_ChecksumMismatchIsNotCached(t *testing.T) {
	archive := sampleArchive(t, "1.0.0")
	src := &fakeSource{
		archives:  map[string][]byte{"1.0.0": archive},
		checksums: map[string]string{"1.0.0": "deadbeef"},
	}
	m, dir := newTestManager(t, src)

	_, err := m.Fetch(context.Background(), "1.0.0", false)
	var sumErr *ChecksumError
	require.ErrorAs(t, err, &sumErr)
	assert.NoFileExists(t, filepath.Join(dir, "1.0.0.tar.gz"))

	sum := sha256.Sum256(archive)
	src.checksums["1.0.0"] = hex.EncodeToString(sum[:])
	_, err = m.Fetch(context.Background(), "1.0.0", false)
	require.NoError(t, err)
}

func TestFetch_BuiltinAndInvalidVersions(t *testing.T) {
	m, _ := newTestManager(t, &fakeSource{})

	b, err := m.Fetch(context.Background(), BuiltinVersion, true)
	require.NoError(t, err)
	assert.Equal(t, OriginBuiltin, b.Origin)

	_, err = m.Fetch(context.Background(), "not-a-version", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid template version")
}

func TestFetch_LatestTagMustBeSemver(t *testing.T) {
	for _, tag := range []string{"release/2", "nightly", "1.2"} {
		src := &fakeSource{latest: tag}
		m, dir := newTestManager(t, src)

		_, err := m.Fetch(context.Background(), Latest, false)
		require.Error(t, err, tag)
		assert.Contains(t, err.Error(), "not a semantic version", tag)
		assert.Zero(t, src.downloadCalls, tag)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, tag)
	}
}

func TestCheckUpdate(t *testing.T) {
	src := &fakeSource{latest: "1.0.0", archives: map[string][]byte{"1.0.0": sampleArchive(t, "1.0.0")}}
	m, _ := newTestManager(t, src)
	_, err := m.Fetch(context.Background(), Latest, false)
	require.NoError(t, err)

	st, err := m.CheckUpdate(context.Background())
	require.NoError(t, err)
	assert.False(t, st.UpdateAvailable)

	src.latest = "1.1.0"
	st, err = m.CheckUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", st.Cached)
	assert.Equal(t, "1.1.0", st.Latest)
	assert.True(t, st.UpdateAvailable)
}

func TestCachedVersions_NewestFirst(t *testing.T) {
	src := &fakeSource{archives: map[string][]byte{
		"1.0.0":  sampleArchive(t, "1.0.0"),
		"1.10.0": sampleArchive(t, "1.10.0"),
		"1.2.0":  sampleArchive(t, "1.2.0"),
	}}
	m, _ := newTestManager(t, src)
	for v := range src.archives {
		_, err := m.Fetch(context.Background(), v, false)
		require.NoError(t, err)
	}

	got, err := m.CachedVersions()
	require.NoError(t, err)
	assert.Equal(t, []string{"1.10.0", "1.2.0", "1.0.0"}, got)
}

func TestNearestVersions(t *testing.T) {
	got := NearestVersions("2.0.0", []string{"1.9.0", "2.1.0", "3.0.0", "garbage", "2.0.1"}, 3)
	assert.Equal(t, []string{"2.0.1", "2.1.0", "3.0.0"}, got)

	assert.Nil(t, NearestVersions("nope", []string{"1.0.0"}, 3))
}
