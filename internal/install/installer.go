// Package install lays a template bundle out in a project directory.
//
// The installer owns two subtrees: .specify/ and the platform profile's
// workflow directory. Each is built completely in a hidden staging
// sibling and renamed into place, so an interrupted install leaves either
// the old tree or the new one. specs/ is created when missing and never
// touched otherwise.
package install

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/artifact"
	"github.com/HendryAvila/speckit/internal/bundle"
	"github.com/HendryAvila/speckit/internal/config"
	"github.com/HendryAvila/speckit/internal/fsutil"
	"github.com/HendryAvila/speckit/internal/logging"
	"github.com/HendryAvila/speckit/internal/validate"
)

// timeNow is replaced in tests to pin backup names.
var timeNow = time.Now

// rename is replaced in tests to fail a swap midway.
var rename = os.Rename

// backupLayout is the UTC timestamp appended to backed-up paths.
const backupLayout = "20060102T150405Z"

// Options control one install.
type Options struct {
	// Force backs up existing managed paths instead of failing.
	Force bool
	// Minimal installs only the essential templates and the constitution.
	Minimal bool
	// Offline is recorded in the project config.
	Offline bool
}

// Backup records a managed path moved aside by a forced install.
type Backup struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Report describes a completed install.
type Report struct {
	Target  string   `json:"target" yaml:"target"`
	Version string   `json:"version" yaml:"version"`
	Profile string   `json:"profile" yaml:"profile"`
	Minimal bool     `json:"minimal" yaml:"minimal"`
	Files   []string `json:"files" yaml:"files"`
	Backups []Backup `json:"backups,omitempty" yaml:"backups,omitempty"`
	// Structure is the post-install structure check. It never fails the
	// install.
	Structure *validate.Report `json:"structure,omitempty" yaml:"structure,omitempty"`
}

// ConflictError means managed paths already exist and Force was not set.
// Nothing was changed.
type ConflictError struct {
	Target string
	Paths  []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already contains %s: re-run with --force to back up and replace",
		e.Target, strings.Join(e.Paths, ", "))
}

// Installer copies bundles into projects.
type Installer struct {
	logger *zap.Logger
}

// New creates an Installer.
func New(logger *zap.Logger) *Installer {
	return &Installer{logger: logging.OrNop(logger)}
}

// file is one planned output, keyed by its slash path relative to the
// managed root it belongs to.
type file struct {
	content []byte
	mode    os.FileMode
}

// tree is everything to be written below one managed root.
type tree struct {
	rel   string // slash path relative to the project
	files map[string]file
	dirs  []string
	// carry lists slash paths moved from the existing tree into the new
	// one instead of being backed up with it.
	carry []string
}

// Install writes b into target for profile p.
func (i *Installer) Install(ctx context.Context, b *bundle.Bundle, p Profile, target string, opts Options) (*Report, error) {
	if b == nil {
		return nil, errors.New("install: no bundle")
	}
	root, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolving target %s: %w", target, err)
	}
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("target %s is not a directory", root)
	}

	trees, err := i.plan(b, p, opts)
	if err != nil {
		return nil, err
	}

	var existing []string
	for _, t := range trees {
		if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(t.rel))); err == nil {
			existing = append(existing, t.rel)
		}
	}
	if len(existing) > 0 && !opts.Force {
		return nil, &ConflictError{Target: root, Paths: existing}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var created []string
	if err := mkdirAll(root, &created); err != nil {
		return nil, fmt.Errorf("creating target %s: %w", root, err)
	}

	staged, err := i.stage(ctx, root, trees, &created)
	if err != nil {
		removeCreated(created)
		return nil, err
	}

	backups, err := i.swap(root, trees, staged)
	if err != nil {
		removeCreated(created)
		return nil, err
	}

	if err := os.MkdirAll(config.SpecsPath(root), 0o755); err != nil {
		return nil, fmt.Errorf("creating specs directory: %w", err)
	}

	report := &Report{
		Target:  root,
		Version: b.Version,
		Profile: p.Name,
		Minimal: opts.Minimal,
		Backups: backups,
	}
	for _, t := range trees {
		for rel := range t.files {
			report.Files = append(report.Files, path.Join(t.rel, rel))
		}
	}
	sort.Strings(report.Files)

	structure, err := validate.Native{}.Run(ctx, validate.CheckStructure, root)
	if err != nil {
		i.logger.Warn("post-install structure check failed", zap.Error(err))
	} else {
		report.Structure = structure
	}

	i.logger.Info("bundle installed",
		zap.String("target", root),
		zap.String("version", b.Version),
		zap.String("profile", p.Name),
		zap.Int("files", len(report.Files)),
		zap.Int("backups", len(backups)))
	return report, nil
}

// plan maps bundle assets onto the managed trees.
func (i *Installer) plan(b *bundle.Bundle, p Profile, opts Options) ([]*tree, error) {
	specify := &tree{
		rel:   config.SpecifyDir,
		files: map[string]file{},
		dirs:  []string{config.TemplatesDir, config.ScriptsDir, config.MemoryDir},
		carry: []string{config.StateDir},
	}
	trees := []*tree{specify}

	var workflow *tree
	if !opts.Minimal {
		workflow = &tree{rel: path.Clean(p.WorkflowDir), files: map[string]file{}}
		trees = append(trees, workflow)
	}

	for _, a := range b.Assets {
		if opts.Minimal && !a.Category.Essential() {
			continue
		}
		top, rest, ok := strings.Cut(a.RelativePath, "/")
		if !ok || rest == "" {
			i.logger.Debug("skipping bundle asset outside known roots", zap.String("path", a.RelativePath))
			continue
		}
		mode := a.Mode.Perm()
		if mode == 0 {
			mode = 0o644
		}
		if path.Ext(rest) == ".sh" {
			mode = 0o755
		}

		switch top {
		case config.TemplatesDir, config.MemoryDir, config.ScriptsDir:
			specify.files[a.RelativePath] = file{content: a.Content, mode: mode}
		case "commands":
			if workflow == nil {
				continue
			}
			name, content := commandFile(p, rest, a.Content)
			workflow.files[name] = file{content: content, mode: 0o644}
		default:
			i.logger.Debug("skipping bundle asset outside known roots", zap.String("path", a.RelativePath))
		}
	}

	cfg, err := config.MarshalProject(config.NewProjectConfig(b.Version, p.Name, opts.Offline))
	if err != nil {
		return nil, err
	}
	specify.files[config.ConfigFile] = file{content: cfg, mode: 0o644}
	specify.files[config.VersionFile] = file{content: []byte(b.Version + "\n"), mode: 0o644}
	return trees, nil
}

// commandFile renames a command for the profile and, when the agent does
// not read metadata blocks, folds the block's description into a heading.
func commandFile(p Profile, rel string, content []byte) (string, []byte) {
	stem := strings.TrimSuffix(rel, path.Ext(rel))
	name := stem + p.suffix()
	if p.SupportsStructuredTrigger {
		return name, content
	}

	block := artifact.Scan(content)
	if !block.Present || !block.Closed {
		return name, content
	}
	body := content
	for n := 0; n < block.End; n++ {
		idx := bytes.IndexByte(body, '\n')
		if idx < 0 {
			body = nil
			break
		}
		body = body[idx+1:]
	}
	body = bytes.TrimLeft(body, "\r\n")

	var out bytes.Buffer
	fmt.Fprintf(&out, "# %s\n\n", path.Base(stem))
	if d, ok := block.Get("description"); ok {
		fmt.Fprintf(&out, "%s\n\n", d.Value)
	}
	out.Write(body)
	return name, out.Bytes()
}

// stage writes every tree into a hidden sibling of its final location and
// returns the staging directories by tree. On error nothing staged is
// left behind.
func (i *Installer) stage(ctx context.Context, root string, trees []*tree, created *[]string) (map[*tree]string, error) {
	staged := map[*tree]string{}
	fail := func(err error) (map[*tree]string, error) {
		for _, dir := range staged {
			_ = os.RemoveAll(dir)
		}
		return nil, err
	}

	for _, t := range trees {
		final := filepath.Join(root, filepath.FromSlash(t.rel))
		parent := filepath.Dir(final)
		if err := mkdirAll(parent, created); err != nil {
			return fail(fmt.Errorf("creating %s: %w", parent, err))
		}
		dir, err := os.MkdirTemp(parent, "."+filepath.Base(final)+".staging-")
		if err != nil {
			return fail(fmt.Errorf("creating staging directory: %w", err))
		}
		staged[t] = dir
		if err := os.Chmod(dir, 0o755); err != nil {
			return fail(fmt.Errorf("preparing staging directory: %w", err))
		}

		for _, d := range t.dirs {
			if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(d)), 0o755); err != nil {
				return fail(fmt.Errorf("creating %s: %w", d, err))
			}
		}
		for rel, f := range t.files {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if err := fsutil.WriteFileAtomic(filepath.Join(dir, filepath.FromSlash(rel)), f.content, f.mode); err != nil {
				return fail(fmt.Errorf("writing %s: %w", path.Join(t.rel, rel), err))
			}
		}
	}
	return staged, nil
}

// swap moves existing managed paths aside and renames the staged trees
// into place. Carried paths move from the old tree into the new one. A
// failure rolls back what was already swapped.
func (i *Installer) swap(root string, trees []*tree, staged map[*tree]string) ([]Backup, error) {
	type done struct {
		final, backup string
		carried       []string
	}
	var (
		backups []Backup
		swapped []done
	)
	rollback := func() {
		for j := len(swapped) - 1; j >= 0; j-- {
			s := swapped[j]
			restoreCarried(s.final, s.backup, s.carried)
			_ = os.RemoveAll(s.final)
			if s.backup != "" {
				_ = rename(s.backup, s.final)
			}
		}
		for _, dir := range staged {
			_ = os.RemoveAll(dir)
		}
	}

	stamp := timeNow().UTC().Format(backupLayout)
	for _, t := range trees {
		final := filepath.Join(root, filepath.FromSlash(t.rel))
		var (
			backup  string
			carried []string
		)
		if _, err := os.Lstat(final); err == nil {
			carried, err = carryInto(final, staged[t], t.carry)
			if err != nil {
				restoreCarried(staged[t], final, carried)
				rollback()
				return nil, fmt.Errorf("preserving %s: %w", t.rel, err)
			}
			backup = freeBackupName(final, stamp)
			if err := rename(final, backup); err != nil {
				restoreCarried(staged[t], final, carried)
				rollback()
				return nil, fmt.Errorf("backing up %s: %w", t.rel, err)
			}
			rel, _ := filepath.Rel(root, backup)
			backups = append(backups, Backup{From: t.rel, To: filepath.ToSlash(rel)})
			i.logger.Info("backed up existing path", zap.String("from", final), zap.String("to", backup))
		}
		if err := rename(staged[t], final); err != nil {
			if backup != "" {
				_ = rename(backup, final)
			}
			restoreCarried(staged[t], final, carried)
			rollback()
			return nil, fmt.Errorf("installing %s: %w", t.rel, err)
		}
		delete(staged, t)
		swapped = append(swapped, done{final: final, backup: backup, carried: carried})
		for _, c := range carried {
			i.logger.Info("kept existing path", zap.String("path", path.Join(t.rel, c)))
		}
	}
	return backups, nil
}

// carryInto renames each existing carry path of from into to and returns
// the ones moved.
func carryInto(from, to string, carry []string) ([]string, error) {
	var moved []string
	for _, c := range carry {
		src := filepath.Join(from, filepath.FromSlash(c))
		if _, err := os.Lstat(src); err != nil {
			continue
		}
		dst := filepath.Join(to, filepath.FromSlash(c))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return moved, err
		}
		if err := os.RemoveAll(dst); err != nil {
			return moved, err
		}
		if err := rename(src, dst); err != nil {
			return moved, err
		}
		moved = append(moved, c)
	}
	return moved, nil
}

// restoreCarried moves carried paths from the new tree back into the old
// one. Missing directories are skipped.
func restoreCarried(from, to string, carried []string) {
	if from == "" || to == "" {
		return
	}
	for _, c := range carried {
		dst := filepath.Join(to, filepath.FromSlash(c))
		_ = os.MkdirAll(filepath.Dir(dst), 0o755)
		_ = rename(filepath.Join(from, filepath.FromSlash(c)), dst)
	}
}

// mkdirAll is os.MkdirAll that appends every directory it creates to
// created, outermost first.
func mkdirAll(dir string, created *[]string) error {
	var missing []string
	for p := dir; ; p = filepath.Dir(p) {
		if _, err := os.Lstat(p); err == nil {
			break
		}
		missing = append(missing, p)
		if filepath.Dir(p) == p {
			break
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for j := len(missing) - 1; j >= 0; j-- {
		*created = append(*created, missing[j])
	}
	return nil
}

// removeCreated removes directories made by a failed install, innermost
// first. Non-empty directories stay.
func removeCreated(created []string) {
	for j := len(created) - 1; j >= 0; j-- {
		_ = os.Remove(created[j])
	}
}

// freeBackupName returns <path>.backup-<stamp>, adding -2, -3 ... when
// that name is taken.
func freeBackupName(p, stamp string) string {
	base := p + ".backup-" + stamp
	candidate := base
	for n := 2; ; n++ {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
