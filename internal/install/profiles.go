package install

import (
	_ "embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultProfile is used when --platform is not given.
const DefaultProfile = "claude"

//go:embed profiles.yaml
var profilesYAML []byte

// Profile describes where one agent integration reads workflow commands.
type Profile struct {
	Name        string `yaml:"name" json:"name"`
	WorkflowDir string `yaml:"workflow_dir" json:"workflow_dir"`
	// SupportsStructuredTrigger is true when the agent reads the command
	// file's metadata block. Otherwise the block is folded into a heading.
	SupportsStructuredTrigger bool   `yaml:"supports_structured_trigger" json:"supports_structured_trigger"`
	FileSuffix                string `yaml:"file_suffix,omitempty" json:"file_suffix,omitempty"`
	Description               string `yaml:"description" json:"description"`
}

// suffix returns the command file suffix, ".md" by default.
func (p Profile) suffix() string {
	if p.FileSuffix == "" {
		return ".md"
	}
	return p.FileSuffix
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// parseProfiles decodes and validates a profile document.
func parseProfiles(data []byte) ([]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}
	if len(f.Profiles) == 0 {
		return nil, fmt.Errorf("parsing profiles: no profiles defined")
	}

	names := map[string]bool{}
	dirs := map[string]string{}
	for _, p := range f.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile with workflow_dir %q has no name", p.WorkflowDir)
		}
		if names[p.Name] {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		names[p.Name] = true

		clean := path.Clean(p.WorkflowDir)
		if p.WorkflowDir == "" || path.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
			return nil, fmt.Errorf("profile %q: workflow_dir %q must be a relative path inside the project", p.Name, p.WorkflowDir)
		}
		if clean == ".specify" || strings.HasPrefix(clean, ".specify/") || clean == "specs" || strings.HasPrefix(clean, "specs/") {
			return nil, fmt.Errorf("profile %q: workflow_dir %q overlaps a managed directory", p.Name, p.WorkflowDir)
		}
		if other, ok := dirs[clean]; ok {
			return nil, fmt.Errorf("profiles %q and %q share workflow_dir %q", other, p.Name, clean)
		}
		dirs[clean] = p.Name
	}
	return f.Profiles, nil
}

var loadProfiles = sync.OnceValues(func() ([]Profile, error) {
	return parseProfiles(profilesYAML)
})

// ListProfiles returns every known profile sorted by name.
func ListProfiles() []Profile {
	profiles, err := loadProfiles()
	if err != nil {
		// The document is embedded; a parse failure is a packaging bug.
		panic(err)
	}
	out := append([]Profile(nil), profiles...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a profile by name. The error lists the valid names.
func Lookup(name string) (Profile, error) {
	var names []string
	for _, p := range ListProfiles() {
		if p.Name == name {
			return p, nil
		}
		names = append(names, p.Name)
	}
	return Profile{}, fmt.Errorf("unknown platform %q: must be one of %s", name, strings.Join(names, ", "))
}
