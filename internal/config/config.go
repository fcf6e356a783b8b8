// Package config holds project layout constants, the per-project
// .specify/config.yaml written by the installer, and the user-level
// settings that control caching, networking and logging.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	// SpecifyDir is the managed directory at the project root.
	SpecifyDir = ".specify"
	// SpecsDir holds one NNN-slug folder per feature.
	SpecsDir = "specs"
	// TemplatesDir, ScriptsDir and MemoryDir live under SpecifyDir.
	TemplatesDir = "templates"
	ScriptsDir   = "scripts"
	MemoryDir    = "memory"
	// StateDir holds one workflow state document per feature.
	StateDir = "state"
	// ConfigFile is the project configuration file under SpecifyDir.
	ConfigFile = "config.yaml"
	// VersionFile records the bundle version installed into the project.
	VersionFile = ".version"
	// ConstitutionFile is the project constitution under MemoryDir.
	ConstitutionFile = "constitution.md"

	// DefaultTemplateSource is written into new project configs.
	DefaultTemplateSource = "https://github.com/HendryAvila/speckit/releases"
)

// ErrNotInitialized is returned when no .specify/ directory is found.
var ErrNotInitialized = errors.New("project not initialized: run 'specify init' first")

// Check names recognised by validation.skip_checks.
const (
	CheckStructure   = "structure"
	CheckNaming      = "naming"
	CheckFrontmatter = "frontmatter"
)

// ValidationConfig controls which checkers run for "all".
type ValidationConfig struct {
	SkipChecks []string `yaml:"skip_checks" koanf:"skip_checks"`
	// FailOnError is kept for compatibility with older projects. Findings
	// never change the exit status regardless of its value.
	FailOnError bool `yaml:"fail_on_error" koanf:"fail_on_error"`
}

// ProjectConfig is the root structure of .specify/config.yaml.
type ProjectConfig struct {
	TemplateSource  string           `yaml:"template_source" koanf:"template_source"`
	TemplateVersion string           `yaml:"template_version" koanf:"template_version"`
	Platform        string           `yaml:"platform" koanf:"platform"`
	Validation      ValidationConfig `yaml:"validation" koanf:"validation"`
	OfflineMode     bool             `yaml:"offline_mode" koanf:"offline_mode"`
}

// NewProjectConfig creates a config for a freshly installed project.
// It carries no timestamps so repeated installs render identical bytes.
func NewProjectConfig(version, platform string, offline bool) *ProjectConfig {
	return &ProjectConfig{
		TemplateSource:  DefaultTemplateSource,
		TemplateVersion: version,
		Platform:        platform,
		Validation:      ValidationConfig{SkipChecks: []string{}},
		OfflineMode:     offline,
	}
}

// Skips reports whether the named check is listed in skip_checks.
func (c *ProjectConfig) Skips(check string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Validation.SkipChecks {
		if s == check {
			return true
		}
	}
	return false
}

// --- Path helpers ---

// SpecifyPath returns the absolute path to the .specify/ directory.
func SpecifyPath(projectRoot string) string {
	return filepath.Join(projectRoot, SpecifyDir)
}

// SpecsPath returns the absolute path to the specs/ directory.
func SpecsPath(projectRoot string) string {
	return filepath.Join(projectRoot, SpecsDir)
}

// ConfigPath returns the absolute path to .specify/config.yaml.
func ConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, SpecifyDir, ConfigFile)
}

// StatePath returns the directory holding workflow state documents.
func StatePath(projectRoot string) string {
	return filepath.Join(projectRoot, SpecifyDir, StateDir)
}

// TemplatePath returns the path of an installed template by file name.
func TemplatePath(projectRoot, name string) string {
	return filepath.Join(projectRoot, SpecifyDir, TemplatesDir, name)
}

// ScriptPath returns the directory holding one shell family's scripts.
func ScriptPath(projectRoot, family string) string {
	return filepath.Join(projectRoot, SpecifyDir, ScriptsDir, family)
}

// Exists checks whether a project has been initialized at projectRoot.
func Exists(projectRoot string) bool {
	info, err := os.Stat(SpecifyPath(projectRoot))
	return err == nil && info.IsDir()
}

// FindProjectRoot walks up from dir looking for a .specify/ directory.
// If none is found it returns dir unchanged; the caller decides what to do.
func FindProjectRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	current := abs
	for {
		if Exists(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		current = parent
	}
}

// --- Project config I/O ---

// MarshalProject renders a project config as YAML.
func MarshalProject(cfg *ProjectConfig) ([]byte, error) {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling project config: %w", err)
	}
	return data, nil
}

// LoadProject reads .specify/config.yaml. A missing file yields a default
// config rather than an error: older layouts did not always write one.
func LoadProject(projectRoot string) (*ProjectConfig, error) {
	if !Exists(projectRoot) {
		return nil, ErrNotInitialized
	}

	cfg := NewProjectConfig("", "", false)
	data, err := os.ReadFile(ConfigPath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading project config: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFile, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ConfigFile, err)
	}
	return cfg, nil
}
