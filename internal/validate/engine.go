package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/logging"
)

// Engine runs checkers through one backend.
type Engine struct {
	backend Backend
	logger  *zap.Logger
}

// NewEngine creates an engine. A nil backend means Native.
func NewEngine(backend Backend, logger *zap.Logger) *Engine {
	if backend == nil {
		backend = Native{}
	}
	return &Engine{backend: backend, logger: logging.OrNop(logger)}
}

// Backend returns the engine's backend.
func (e *Engine) Backend() Backend { return e.backend }

// Select resolves a --scope value into checkers, dropping the ones listed
// in skip when scope is "all". An explicitly named checker always runs.
func Select(scope string, skip func(string) bool) ([]Checker, error) {
	if scope == "" || scope == "all" {
		var out []Checker
		for _, c := range Checkers {
			if skip != nil && skip(string(c)) {
				continue
			}
			out = append(out, c)
		}
		return out, nil
	}
	c, err := ParseChecker(scope)
	if err != nil {
		return nil, err
	}
	return []Checker{c}, nil
}

// Check runs each checker against target in order.
func (e *Engine) Check(ctx context.Context, target string, checkers []Checker) ([]*Report, error) {
	reports := make([]*Report, 0, len(checkers))
	for _, c := range checkers {
		r, err := e.backend.Run(ctx, c, target)
		if err != nil {
			return reports, fmt.Errorf("%s check: %w", c, err)
		}
		errs, warns, _ := r.Counts()
		e.logger.Debug("check finished",
			zap.String("checker", string(c)),
			zap.String("backend", e.backend.Name()),
			zap.Int("errors", errs),
			zap.Int("warnings", warns))
		reports = append(reports, r)
	}
	return reports, nil
}

// CheckProject runs checkers for a path inside the project at root.
// Structure and naming always describe the whole project; frontmatter is
// scoped to target, which may be root, a feature folder or one artifact.
func (e *Engine) CheckProject(ctx context.Context, root, target string, checkers []Checker) ([]*Report, error) {
	reports := make([]*Report, 0, len(checkers))
	for _, c := range checkers {
		at := root
		if c == CheckFrontmatter {
			at = target
		}
		r, err := e.Check(ctx, at, []Checker{c})
		reports = append(reports, r...)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// --- Fix ---

// FixAction is one change applied by Fix.
type FixAction struct {
	Kind string `json:"kind" yaml:"kind"` // mkdir | rename
	From string `json:"from,omitempty" yaml:"from,omitempty"`
	Path string `json:"path" yaml:"path"`
}

// Fix applies the mechanical repairs suggested by the checkers: missing
// required directories are created and artifact files with non-conforming
// names are renamed to their suggested name when that name is free.
// Folder renames are left to the user since state documents reference
// feature ids.
func (e *Engine) Fix(root string) ([]FixAction, error) {
	var actions []FixAction

	for _, dir := range RequiredDirs {
		path := filepath.Join(root, filepath.FromSlash(dir))
		if isDir(path) {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return actions, fmt.Errorf("creating %s: %w", dir, err)
		}
		actions = append(actions, FixAction{Kind: "mkdir", Path: dir})
	}

	specs := filepath.Join(root, specsDir)
	for _, d := range visibleEntries(specs) {
		if !d.dir {
			continue
		}
		for _, f := range markdownFiles(filepath.Join(specs, d.name)) {
			if ArtifactPattern.MatchString(f) {
				continue
			}
			suggested := SuggestName(f)
			if !ArtifactPattern.MatchString(suggested) {
				continue
			}
			from := filepath.Join(specs, d.name, f)
			to := filepath.Join(specs, d.name, suggested)
			if _, err := os.Lstat(to); err == nil {
				e.logger.Warn("fix skipped: target exists", zap.String("from", from), zap.String("to", to))
				continue
			}
			if err := os.Rename(from, to); err != nil {
				return actions, fmt.Errorf("renaming %s: %w", f, err)
			}
			actions = append(actions, FixAction{
				Kind: "rename",
				From: specsDir + "/" + d.name + "/" + f,
				Path: specsDir + "/" + d.name + "/" + suggested,
			})
		}
	}
	return actions, nil
}
