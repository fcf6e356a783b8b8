package bundle

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/fsutil"
	"github.com/HendryAvila/speckit/internal/logging"
)

// Latest asks for the newest published version.
const Latest = "latest"

// markerFile records the most recently downloaded version in the cache.
const markerFile = ".version"

// timeNow is swapped in tests.
var timeNow = time.Now

// Options tune the manager's network behavior.
type Options struct {
	CacheDir string
	// Retries is the number of retries after the first attempt.
	Retries        int
	InitialBackoff time.Duration
	// AttemptTimeout bounds each individual network attempt.
	AttemptTimeout time.Duration
}

// Manager resolves, downloads and caches bundles.
type Manager struct {
	source Source
	opts   Options
	logger *zap.Logger
}

// NewManager creates a manager. source may be nil for offline-only use.
func NewManager(source Source, opts Options, logger *zap.Logger) *Manager {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Manager{source: source, opts: opts, logger: logging.OrNop(logger)}
}

// Fetch returns the bundle for version ("latest", "builtin" or a semantic
// version). Offline fetches only read the cache.
func (m *Manager) Fetch(ctx context.Context, version string, offline bool) (*Bundle, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		version = Latest
	}
	if version == BuiltinVersion {
		return Builtin(), nil
	}
	if version != Latest {
		v, err := semver.NewVersion(version)
		if err != nil {
			return nil, fmt.Errorf("invalid template version %q: %w", version, err)
		}
		version = v.String()
	}

	if offline {
		return m.fromCache(version)
	}
	if m.source == nil {
		return nil, fmt.Errorf("no template source configured")
	}

	resolved := version
	if version == Latest {
		err := m.retry(ctx, "resolve latest", func(ctx context.Context) error {
			v, err := m.source.Latest(ctx)
			if err != nil {
				return err
			}
			resolved = v
			return nil
		})
		if err != nil {
			return m.fallback(Latest, err)
		}
		// The tag names the cache entry and the version marker.
		if _, err := semver.StrictNewVersion(resolved); err != nil {
			return nil, fmt.Errorf("latest release tag %q is not a semantic version: %w", resolved, err)
		}
	}

	// Cached versions are immutable.
	if b, err := m.loadCached(resolved); err == nil {
		m.logger.Debug("using cached templates", zap.String("version", resolved))
		if err := m.writeMarker(resolved); err != nil {
			m.logger.Warn("updating version marker", zap.Error(err))
		}
		return b, nil
	}

	var dl *Download
	err := m.retry(ctx, "download "+resolved, func(ctx context.Context) error {
		d, err := m.source.Download(ctx, resolved)
		if err != nil {
			return err
		}
		dl = d
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionNotFound) {
			return nil, &VersionNotFoundError{Version: resolved, Nearest: m.nearest(ctx, resolved)}
		}
		return m.fallback(version, err)
	}

	if dl.Checksum != "" {
		sum := sha256.Sum256(dl.Archive)
		actual := hex.EncodeToString(sum[:])
		if actual != dl.Checksum {
			return nil, &ChecksumError{Version: resolved, Expected: dl.Checksum, Actual: actual}
		}
	} else {
		m.logger.Debug("no published checksum, skipping verification", zap.String("version", resolved))
	}

	b, err := ReadArchive(bytes.NewReader(dl.Archive), resolved)
	if err != nil {
		return nil, fmt.Errorf("parsing templates %s: %w", resolved, err)
	}
	b.Origin = OriginRemote
	b.FetchedAt = timeNow().UTC()

	if err := m.store(resolved, dl.Archive); err != nil {
		m.logger.Warn("caching templates failed", zap.String("version", resolved), zap.Error(err))
	}
	return b, nil
}

// UpdateStatus compares the cached version with the newest release.
type UpdateStatus struct {
	Cached          string `json:"cached"`
	Latest          string `json:"latest"`
	UpdateAvailable bool   `json:"update_available"`
}

// CheckUpdate reports whether a newer release than the cached one exists.
func (m *Manager) CheckUpdate(ctx context.Context) (*UpdateStatus, error) {
	if m.source == nil {
		return nil, fmt.Errorf("no template source configured")
	}
	st := &UpdateStatus{}
	if v, err := m.readMarker(); err == nil {
		st.Cached = v
	}
	err := m.retry(ctx, "resolve latest", func(ctx context.Context) error {
		v, err := m.source.Latest(ctx)
		if err != nil {
			return err
		}
		st.Latest = v
		return nil
	})
	if err != nil {
		return nil, &NetworkError{Version: Latest, Err: err}
	}
	st.UpdateAvailable = isNewer(st.Cached, st.Latest)
	return st, nil
}

// CachedVersions lists versions present in the cache, newest first.
func (m *Manager) CachedVersions() ([]string, error) {
	entries, err := os.ReadDir(m.opts.CacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".tar.gz") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".tar.gz"))
	}
	sortVersionsDesc(out)
	return out, nil
}

// --- retries ---

// retry runs op with bounded exponential backoff. ErrVersionNotFound is
// permanent and returned immediately.
func (m *Manager) retry(ctx context.Context, what string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.InitialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(m.opts.Retries)), ctx)

	attempt := func() error {
		actx, cancel := context.WithTimeout(ctx, m.opts.AttemptTimeout)
		defer cancel()
		err := op(actx)
		if err != nil && errors.Is(err, ErrVersionNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		m.logger.Warn("template source request failed, retrying",
			zap.String("operation", what),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return backoff.RetryNotify(attempt, policy, notify)
}

// fallback serves a cached copy after a network failure.
func (m *Manager) fallback(version string, cause error) (*Bundle, error) {
	b, err := m.fromCache(version)
	if err != nil {
		return nil, &NetworkError{Version: version, Err: cause}
	}
	m.logger.Warn("template source unreachable, using cached templates",
		zap.String("requested", version),
		zap.String("version", b.Version),
		zap.Error(cause))
	return b, nil
}

// nearest returns up to three published versions closest to want.
func (m *Manager) nearest(ctx context.Context, want string) []string {
	var all []string
	err := m.retry(ctx, "list versions", func(ctx context.Context) error {
		v, err := m.source.Versions(ctx)
		all = v
		return err
	})
	if err != nil {
		m.logger.Debug("listing versions failed", zap.Error(err))
		return nil
	}
	return NearestVersions(want, all, 3)
}

// NearestVersions orders candidates by semantic distance to want (major,
// then minor, then patch) and returns at most n of them. Ties prefer the
// newer version; unparseable candidates are ignored.
func NearestVersions(want string, candidates []string, n int) []string {
	target, err := semver.NewVersion(want)
	if err != nil {
		return nil
	}
	type cand struct {
		v    *semver.Version
		dist [3]uint64
	}
	var cs []cand
	for _, c := range candidates {
		v, err := semver.NewVersion(c)
		if err != nil {
			continue
		}
		cs = append(cs, cand{v: v, dist: [3]uint64{
			absDiff(v.Major(), target.Major()),
			absDiff(v.Minor(), target.Minor()),
			absDiff(v.Patch(), target.Patch()),
		}})
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].dist != cs[j].dist {
			for k := 0; k < 3; k++ {
				if cs[i].dist[k] != cs[j].dist[k] {
					return cs[i].dist[k] < cs[j].dist[k]
				}
			}
		}
		return cs[i].v.GreaterThan(cs[j].v)
	})
	var out []string
	for _, c := range cs {
		if len(out) == n {
			break
		}
		out = append(out, c.v.String())
	}
	return out
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func isNewer(current, latest string) bool {
	l, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}
	c, err := semver.NewVersion(current)
	if err != nil {
		return current == ""
	}
	return l.GreaterThan(c)
}

func sortVersionsDesc(vs []string) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, errA := semver.NewVersion(vs[i])
		b, errB := semver.NewVersion(vs[j])
		if errA != nil || errB != nil {
			return vs[i] > vs[j]
		}
		return a.GreaterThan(b)
	})
}

// --- cache ---

func (m *Manager) archivePath(version string) string {
	return filepath.Join(m.opts.CacheDir, version+".tar.gz")
}

func (m *Manager) fromCache(version string) (*Bundle, error) {
	if version == Latest {
		v, err := m.readMarker()
		if err != nil {
			return nil, &CacheMissError{Version: Latest}
		}
		version = v
	}
	b, err := m.loadCached(version)
	if err != nil {
		return nil, &CacheMissError{Version: version}
	}
	return b, nil
}

func (m *Manager) loadCached(version string) (*Bundle, error) {
	path := m.archivePath(version)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := ReadArchive(bytes.NewReader(data), version)
	if err != nil {
		m.logger.Warn("cached templates unreadable", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	b.Origin = OriginCache
	if info, err := os.Stat(path); err == nil {
		b.FetchedAt = info.ModTime().UTC()
	}
	return b, nil
}

// store writes the archive and then the version marker, each atomically.
func (m *Manager) store(version string, archive []byte) error {
	if err := fsutil.WriteFileAtomic(m.archivePath(version), archive, 0o644); err != nil {
		return err
	}
	return m.writeMarker(version)
}

func (m *Manager) writeMarker(version string) error {
	return fsutil.WriteFileAtomic(filepath.Join(m.opts.CacheDir, markerFile), []byte(version+"\n"), 0o644)
}

func (m *Manager) readMarker() (string, error) {
	data, err := os.ReadFile(filepath.Join(m.opts.CacheDir, markerFile))
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("empty version marker")
	}
	return v, nil
}
