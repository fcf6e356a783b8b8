package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// SPECIFY_GITHUB_TOKEN -> github.token.
const EnvPrefix = "SPECIFY_"

// GitHubSettings addresses the release repository that publishes bundles.
type GitHubSettings struct {
	Owner       string `koanf:"owner"`
	Repo        string `koanf:"repo"`
	Token       string `koanf:"token"`
	AssetPrefix string `koanf:"asset_prefix"`
}

// NetworkSettings bounds every remote call.
type NetworkSettings struct {
	Timeout        time.Duration `koanf:"timeout"`
	Retries        int           `koanf:"retries"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// HistorySettings locates the SQLite history journal.
type HistorySettings struct {
	Path     string `koanf:"path"`
	Disabled bool   `koanf:"disabled"`
}

// Settings is the user-level configuration for the specify binary.
type Settings struct {
	CacheDir string          `koanf:"cache_dir"`
	GitHub   GitHubSettings  `koanf:"github"`
	Network  NetworkSettings `koanf:"network"`
	Log      LogSettings     `koanf:"log"`
	History  HistorySettings `koanf:"history"`
}

// DefaultSettings returns the built-in defaults. Loaded values are
// decoded on top of these, so absent keys keep their default.
func DefaultSettings() Settings {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".specify")
	return Settings{
		CacheDir: filepath.Join(base, "cache"),
		GitHub: GitHubSettings{
			Owner:       "HendryAvila",
			Repo:        "speckit",
			AssetPrefix: "specify-templates",
		},
		Network: NetworkSettings{
			Timeout:        30 * time.Second,
			Retries:        2,
			InitialBackoff: 500 * time.Millisecond,
		},
		Log: LogSettings{
			Level:  "warn",
			Format: "console",
		},
		History: HistorySettings{
			Path: filepath.Join(base, "history.db"),
		},
	}
}

// DefaultSettingsPath is ~/.config/specify/config.yaml.
func DefaultSettingsPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "specify", "config.yaml")
}

// settingsSections are the nested keys the env transformer knows about.
var settingsSections = map[string]bool{
	"github":  true,
	"network": true,
	"log":     true,
	"history": true,
}

// LoadSettings loads user settings from a YAML file, then overrides them
// with SPECIFY_* environment variables.
//
// Precedence (highest first): environment, file, defaults. A missing
// file is not an error.
func LoadSettings(path string) (Settings, error) {
	cfg := DefaultSettings()
	k := koanf.New(".")

	if path == "" {
		path = DefaultSettingsPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("loading settings file %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decoding settings: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envKey maps SPECIFY_NETWORK_INITIAL_BACKOFF to network.initial_backoff
// and SPECIFY_CACHE_DIR to cache_dir. Only the first underscore after a
// known section becomes a dot.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 2 && settingsSections[parts[0]] {
		return parts[0] + "." + parts[1]
	}
	return lower
}

// Validate rejects settings that would make remote calls unbounded.
func (s Settings) Validate() error {
	if s.CacheDir == "" {
		return fmt.Errorf("settings: cache_dir must not be empty")
	}
	if s.Network.Timeout <= 0 {
		return fmt.Errorf("settings: network.timeout must be positive, got %s", s.Network.Timeout)
	}
	if s.Network.Retries < 0 {
		return fmt.Errorf("settings: network.retries must not be negative, got %d", s.Network.Retries)
	}
	if s.GitHub.Owner == "" || s.GitHub.Repo == "" {
		return fmt.Errorf("settings: github.owner and github.repo are required")
	}
	return nil
}
