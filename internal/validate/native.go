package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/HendryAvila/speckit/internal/artifact"
)

// Naming rules shared by every backend.
var (
	FeatureDirPattern = regexp.MustCompile(`^[0-9]{3}-[a-z0-9]+(-[a-z0-9]+)*$`)
	ArtifactPattern   = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*\.md$`)
	folderIDPattern   = regexp.MustCompile(`^([0-9]{3})-`)
)

// RequiredDirs are checked by the structure checker, in order.
var RequiredDirs = []string{".specify/templates", ".specify/scripts", "specs"}

const (
	constitutionPath = ".specify/memory/constitution.md"
	specsDir         = "specs"
	initSuggestion   = "run 'specify init'"
)

// Backend runs one checker against a target.
type Backend interface {
	Name() string
	Run(ctx context.Context, checker Checker, target string) (*Report, error)
}

// Native is the in-process Go backend.
type Native struct{}

// Name implements Backend.
func (Native) Name() string { return "native" }

// Run implements Backend.
func (Native) Run(ctx context.Context, checker Checker, target string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var msgs []Message
	switch checker {
	case CheckStructure:
		msgs = checkStructure(target)
	case CheckNaming:
		msgs = checkNaming(target)
	case CheckFrontmatter:
		msgs = checkFrontmatter(target)
	default:
		return nil, fmt.Errorf("unknown checker %q", checker)
	}
	return &Report{Checker: checker, Target: target, Backend: "native", Messages: msgs}, nil
}

// --- collector ---

type collector struct {
	msgs  []Message
	errs  int
	warns int
}

func (c *collector) add(level Level, file string, line int, text, suggestion string) {
	c.msgs = append(c.msgs, Message{Level: level, File: file, Line: line, Text: text, Suggestion: suggestion})
	switch level {
	case LevelError:
		c.errs++
	case LevelWarn:
		c.warns++
	}
}

func (c *collector) findings() int { return c.errs + c.warns }

func (c *collector) finish(checker Checker) []Message {
	c.msgs = append(c.msgs, Message{
		Level: LevelInfo,
		Text:  fmt.Sprintf("%s validation complete: %d error(s), %d warning(s)", checker.label(), c.errs, c.warns),
	})
	return c.msgs
}

// --- Structure ---

func checkStructure(root string) []Message {
	c := &collector{}
	if !isDir(root) {
		c.add(LevelError, filepath.ToSlash(root), 0, "target directory not found", "")
		return c.finish(CheckStructure)
	}

	for _, dir := range RequiredDirs {
		if isDir(filepath.Join(root, filepath.FromSlash(dir))) {
			c.add(LevelInfo, dir, 0, "required directory present", "")
		} else {
			c.add(LevelError, dir, 0, "required directory missing", initSuggestion)
		}
	}

	if !isFile(filepath.Join(root, filepath.FromSlash(constitutionPath))) {
		c.add(LevelWarn, constitutionPath, 0, "constitution not found", "restore it with 'specify init --force'")
	}

	for _, e := range visibleEntries(filepath.Join(root, specsDir)) {
		rel := specsDir + "/" + e.name
		if !e.dir {
			c.add(LevelWarn, rel, 0, "unexpected file in specs root", "")
			continue
		}
		if !FeatureDirPattern.MatchString(e.name) {
			c.add(LevelError, rel, 0, "feature folder does not match NNN-slug pattern", "rename to e.g. 001-my-feature")
		}
	}
	return c.finish(CheckStructure)
}

// --- Naming ---

func checkNaming(root string) []Message {
	c := &collector{}
	if !isDir(root) {
		c.add(LevelError, filepath.ToSlash(root), 0, "target directory not found", "")
		return c.finish(CheckNaming)
	}

	specs := filepath.Join(root, specsDir)
	if !isDir(specs) {
		c.add(LevelWarn, specsDir, 0, "specs directory not found", initSuggestion)
		return c.finish(CheckNaming)
	}

	for _, e := range visibleEntries(specs) {
		if !e.dir {
			continue
		}
		rel := specsDir + "/" + e.name
		if !FeatureDirPattern.MatchString(e.name) {
			c.add(LevelError, rel, 0, "folder name does not match NNN-slug pattern",
				"use a 3-digit id followed by a lowercase hyphenated slug")
		}
		for _, f := range markdownFiles(filepath.Join(specs, e.name)) {
			if !ArtifactPattern.MatchString(f) {
				c.add(LevelWarn, rel+"/"+f, 0, "file name is not lowercase-with-hyphens", "rename to "+SuggestName(f))
			}
		}
	}
	return c.finish(CheckNaming)
}

// SuggestName lowercases ASCII letters and replaces underscores and spaces
// with hyphens.
func SuggestName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '_' || r == ' ':
			return '-'
		}
		return r
	}, name)
}

// --- Frontmatter ---

func checkFrontmatter(target string) []Message {
	c := &collector{}
	info, err := os.Stat(target)
	if err != nil {
		c.add(LevelError, filepath.ToSlash(target), 0, "target not found", "")
		return c.finish(CheckFrontmatter)
	}

	if !info.IsDir() {
		checkArtifact(c, target, filepath.ToSlash(target))
		return c.finish(CheckFrontmatter)
	}

	specs := filepath.Join(target, specsDir)
	if !isDir(specs) {
		if name, ok := featureFolder(target); ok {
			checkFolder(c, target, specsDir+"/"+name)
			return c.finish(CheckFrontmatter)
		}
		c.add(LevelWarn, specsDir, 0, "specs directory not found", initSuggestion)
		return c.finish(CheckFrontmatter)
	}
	for _, e := range visibleEntries(specs) {
		if e.dir {
			checkFolder(c, filepath.Join(specs, e.name), specsDir+"/"+e.name)
		}
	}
	return c.finish(CheckFrontmatter)
}

// featureFolder reports whether dir sits directly below a specs directory
// and returns its name.
func featureFolder(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	if filepath.Base(filepath.Dir(abs)) != specsDir {
		return "", false
	}
	return filepath.Base(abs), true
}

func checkFolder(c *collector, dir, display string) {
	for _, f := range markdownFiles(dir) {
		checkArtifact(c, filepath.Join(dir, f), display+"/"+f)
	}
}

func checkArtifact(c *collector, path, display string) {
	before := c.findings()

	content, err := os.ReadFile(path)
	if err != nil {
		c.add(LevelError, display, 0, "file could not be read", "")
		return
	}
	b := artifact.Scan(content)
	if !b.Present {
		c.add(LevelError, display, 1, "missing frontmatter block", "start the file with a '---' delimited metadata block")
		return
	}
	for _, n := range b.Unrecognised {
		c.add(LevelWarn, display, n, "unrecognised frontmatter line", "")
	}
	if !b.Closed {
		c.add(LevelError, display, 1, "unterminated frontmatter block", "close the block with '---'")
		return
	}

	if f, ok := b.Get(artifact.KeyFeatureID); !ok {
		c.add(LevelError, display, 1, "missing required field feature_id", "add 'feature_id: <id>'")
	} else if !artifact.FeatureIDFormat.MatchString(f.Value) {
		c.add(LevelError, display, f.Line, "feature_id must be an integer", "")
	} else if m := folderIDPattern.FindStringSubmatch(filepath.Base(filepath.Dir(path))); m != nil {
		id, _ := strconv.Atoi(f.Value)
		folder, _ := strconv.Atoi(m[1])
		if id != folder {
			c.add(LevelError, display, f.Line, "feature_id does not match folder id "+m[1],
				fmt.Sprintf("set 'feature_id: %d'", folder))
		}
	}

	if f, ok := b.Get(artifact.KeyCreated); !ok {
		c.add(LevelError, display, 1, "missing required field created", "add 'created: YYYY-MM-DD'")
	} else if !artifact.DateFormat.MatchString(f.Value) {
		c.add(LevelError, display, f.Line, "created must be an ISO date (YYYY-MM-DD)", "")
	}

	if f, ok := b.Get(artifact.KeyStatus); !ok {
		c.add(LevelError, display, 1, "missing required field status", "add 'status: draft'")
	} else if !artifact.Status(f.Value).Valid() {
		c.add(LevelError, display, f.Line, "status must be one of draft, active, complete, archived", "")
	}

	if _, ok := b.Get(artifact.KeyVersion); !ok {
		c.add(LevelWarn, display, 1, "optional field version not set", "")
	}
	if _, ok := b.Get(artifact.KeyBranch); !ok {
		c.add(LevelWarn, display, 1, "optional field branch not set", "")
	}

	if f, ok := b.Get(artifact.KeyParentSpec); ok {
		if !isFile(filepath.Join(filepath.Dir(path), filepath.FromSlash(f.Value))) {
			c.add(LevelError, display, f.Line, "parent_spec does not resolve to an existing artifact",
				"point parent_spec at an existing spec relative to this file")
		}
	}

	if c.findings() == before {
		c.add(LevelInfo, display, 0, "frontmatter valid", "")
	}
}

// --- filesystem helpers ---

type entry struct {
	name string
	dir  bool
}

// visibleEntries lists non-hidden entries of dir in byte order, following
// symlinks and skipping entries that cannot be stat'ed.
func visibleEntries(dir string) []entry {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []entry
	for _, de := range des {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, de.Name()))
		if err != nil {
			continue
		}
		out = append(out, entry{name: de.Name(), dir: info.IsDir()})
	}
	return out
}

// markdownFiles lists non-hidden regular *.md files directly inside dir.
func markdownFiles(dir string) []string {
	var out []string
	for _, e := range visibleEntries(dir) {
		if e.dir || !strings.HasSuffix(e.name, ".md") {
			continue
		}
		if isFile(filepath.Join(dir, e.name)) {
			out = append(out, e.name)
		}
	}
	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
