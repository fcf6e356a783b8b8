// Package feature scaffolds new features: a numbered specs/ folder, a
// spec.md rendered from the installed template, and the feature's
// workflow state advanced to spec_created.
package feature

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/speckit/internal/bundle"
	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/fsutil"
	"github.com/HendryAvila/speckit/internal/workflow"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// SpecTemplate is the template file rendered into spec.md.
const SpecTemplate = "spec-template.md"

// MaxID is the largest id a 3-digit folder prefix can hold.
const MaxID = 999

var folderID = regexp.MustCompile(`^([0-9]{3})-`)

// Feature is a newly created feature.
type Feature struct {
	ID       int             `json:"id"`
	Slug     string          `json:"slug"`
	Dir      string          `json:"dir"`
	SpecPath string          `json:"spec_path"`
	State    *workflow.State `json:"state"`
}

// Folder returns the NNN-slug folder name.
func (f *Feature) Folder() string { return FolderName(f.ID, f.Slug) }

// FolderName formats a feature folder name.
func FolderName(id int, slug string) string { return fmt.Sprintf("%03d-%s", id, slug) }

// Create scaffolds a feature under root and advances it to spec_created.
// On failure before the workflow state exists, the folder is removed.
func Create(ctx context.Context, root, description string, orch *workflow.Orchestrator) (*Feature, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.New("feature description is required")
	}
	if !config.Exists(root) {
		return nil, config.ErrNotInitialized
	}

	id, err := NextID(root)
	if err != nil {
		return nil, err
	}
	slug := Slugify(description)
	f := &Feature{ID: id, Slug: slug}
	f.Dir = filepath.Join(config.SpecsPath(root), f.Folder())
	f.SpecPath = filepath.Join(f.Dir, "spec.md")

	tmpl, err := specTemplate(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.SpecsPath(root), 0o755); err != nil {
		return nil, fmt.Errorf("creating specs directory: %w", err)
	}
	if err := os.Mkdir(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating feature folder: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(f.Dir) }

	spec := Render(tmpl, Values{
		FeatureID:   id,
		Date:        timeNow(),
		Branch:      f.Folder(),
		Name:        title(description),
		Description: description,
	})
	if err := fsutil.WriteFileAtomic(f.SpecPath, spec, 0o644); err != nil {
		cleanup()
		return nil, fmt.Errorf("writing spec: %w", err)
	}

	if _, err := orch.Store().Init(id); err != nil {
		cleanup()
		return nil, fmt.Errorf("initializing workflow state: %w", err)
	}
	res, err := orch.Transition(ctx, id, workflow.PhaseSpecCreated, false)
	if err != nil {
		return nil, fmt.Errorf("advancing feature %03d: %w", id, err)
	}
	f.State = res.State
	return f, nil
}

// NextID returns one past the highest id used by a specs/ folder.
func NextID(root string) (int, error) {
	entries, err := os.ReadDir(config.SpecsPath(root))
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("reading specs directory: %w", err)
	}
	highest := 0
	for _, e := range entries {
		m := folderID.FindStringSubmatch(e.Name())
		if !e.IsDir() || m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		if n > highest {
			highest = n
		}
	}
	if highest >= MaxID {
		return 0, fmt.Errorf("no feature ids left: %03d is taken", highest)
	}
	return highest + 1, nil
}

// specTemplate prefers the project's installed template and falls back to
// the built-in one when a minimal or older install lacks it.
func specTemplate(root string) ([]byte, error) {
	data, err := os.ReadFile(config.TemplatePath(root, SpecTemplate))
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading spec template: %w", err)
	}
	a, ok := bundle.Builtin().Asset(config.TemplatesDir + "/" + SpecTemplate)
	if !ok {
		return nil, fmt.Errorf("spec template not found")
	}
	return a.Content, nil
}

// title is the first line of a description, capped at 80 characters.
func title(description string) string {
	line, _, _ := strings.Cut(description, "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > 80 {
		line = strings.TrimSpace(string(r[:80]))
	}
	return line
}
