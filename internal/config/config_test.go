package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- NewProjectConfig ---

func TestNewProjectConfig_SetsDefaults(t *testing.T) {
	cfg := NewProjectConfig("1.2.0", "claude", false)

	assert.Equal(t, DefaultTemplateSource, cfg.TemplateSource)
	assert.Equal(t, "1.2.0", cfg.TemplateVersion)
	assert.Equal(t, "claude", cfg.Platform)
	assert.False(t, cfg.OfflineMode)
	assert.False(t, cfg.Validation.FailOnError)
	assert.Empty(t, cfg.Validation.SkipChecks)
}

func TestMarshalProject_IsDeterministic(t *testing.T) {
	a, err := MarshalProject(NewProjectConfig("1.0.0", "copilot", true))
	require.NoError(t, err)
	b, err := MarshalProject(NewProjectConfig("1.0.0", "copilot", true))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), "template_version: 1.0.0")
	assert.Contains(t, string(a), "offline_mode: true")
}

// --- Path helpers ---

func TestPaths(t *testing.T) {
	root := "/home/user/project"
	assert.Equal(t, filepath.Join(root, ".specify"), SpecifyPath(root))
	assert.Equal(t, filepath.Join(root, "specs"), SpecsPath(root))
	assert.Equal(t, filepath.Join(root, ".specify", "config.yaml"), ConfigPath(root))
	assert.Equal(t, filepath.Join(root, ".specify", "state"), StatePath(root))
	assert.Equal(t, filepath.Join(root, ".specify", "templates", "spec-template.md"), TemplatePath(root, "spec-template.md"))
	assert.Equal(t, filepath.Join(root, ".specify", "scripts", "bash"), ScriptPath(root, "bash"))
}

func TestFindProjectRoot_WalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".specify"), 0o755))
	nested := filepath.Join(root, "specs", "001-login")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindProjectRoot_NoProjectReturnsInput(t *testing.T) {
	dir := t.TempDir()
	got, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

// --- LoadProject ---

func TestLoadProject_NotInitialized(t *testing.T) {
	_, err := LoadProject(t.TempDir())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestLoadProject_RoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(SpecifyPath(root), 0o755))

	cfg := NewProjectConfig("2.0.0", "gemini", false)
	cfg.Validation.SkipChecks = []string{CheckNaming}
	data, err := MarshalProject(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ConfigPath(root), data, 0o644))

	loaded, err := LoadProject(root)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", loaded.TemplateVersion)
	assert.Equal(t, "gemini", loaded.Platform)
	assert.True(t, loaded.Skips(CheckNaming))
	assert.False(t, loaded.Skips(CheckStructure))
}

func TestLoadProject_MissingFileYieldsDefaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(SpecifyPath(root), 0o755))

	cfg, err := LoadProject(root)
	require.NoError(t, err)
	assert.False(t, cfg.Skips(CheckFrontmatter))
}

func TestLoadProject_CorruptYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(SpecifyPath(root), 0o755))
	require.NoError(t, os.WriteFile(ConfigPath(root), []byte("validation: [unclosed"), 0o644))

	_, err := LoadProject(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config.yaml")
}

// --- Settings ---

func TestLoadSettings_DefaultsWhenFileMissing(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Network.Retries)
	assert.Equal(t, "speckit", s.GitHub.Repo)
	assert.Equal(t, 30*time.Second, s.Network.Timeout)
}

func TestLoadSettings_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "cache_dir: /tmp/specify-cache\n" +
		"network:\n  timeout: 5s\n  retries: 1\n" +
		"github:\n  owner: acme\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("SPECIFY_GITHUB_REPO", "kit")
	t.Setenv("SPECIFY_NETWORK_INITIAL_BACKOFF", "10ms")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/specify-cache", s.CacheDir)
	assert.Equal(t, 5*time.Second, s.Network.Timeout)
	assert.Equal(t, 1, s.Network.Retries)
	assert.Equal(t, "acme", s.GitHub.Owner)
	assert.Equal(t, "kit", s.GitHub.Repo)
	assert.Equal(t, 10*time.Millisecond, s.Network.InitialBackoff)
}

func TestLoadSettings_RejectsNonPositiveTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network:\n  timeout: 0s\n"), 0o600))

	_, err := LoadSettings(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network.timeout")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SPECIFY_GITHUB_TOKEN":            "github.token",
		"SPECIFY_CACHE_DIR":               "cache_dir",
		"SPECIFY_NETWORK_INITIAL_BACKOFF": "network.initial_backoff",
		"SPECIFY_LOG_LEVEL":               "log.level",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
