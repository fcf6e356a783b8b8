// Package bundle fetches, caches and parses versioned template bundles.
//
// A bundle is a gzip-compressed tar archive published as a release asset.
// It carries the document templates, the project constitution, the agent
// workflow command files and the validator scripts. Downloaded archives
// are cached per version; a bundle compiled into the binary serves as the
// last resort.
package bundle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Category classifies an asset by what it is used for.
type Category string

const (
	CategorySpec         Category = "spec"
	CategoryPlan         Category = "plan"
	CategoryTasks        Category = "tasks"
	CategoryConstitution Category = "constitution"
	CategoryScript       Category = "script"
	CategoryWorkflow     Category = "workflow"
	CategoryTemplate     Category = "template"
)

// Essential reports whether a minimal install keeps assets of c.
func (c Category) Essential() bool {
	switch c {
	case CategorySpec, CategoryPlan, CategoryTasks, CategoryConstitution:
		return true
	}
	return false
}

// Asset is one file in a bundle. RelativePath always uses forward slashes
// and has the archive's top-level directory stripped.
type Asset struct {
	RelativePath string
	Content      []byte
	Category     Category
	Mode         fs.FileMode
}

// Origin records where a bundle came from.
type Origin string

const (
	OriginRemote  Origin = "remote"
	OriginCache   Origin = "cache"
	OriginBuiltin Origin = "builtin"
)

// Bundle is a parsed template bundle. Asset paths are unique.
type Bundle struct {
	Version   string
	Assets    []Asset
	FetchedAt time.Time
	Origin    Origin
}

// Asset returns the asset at rel, if present.
func (b *Bundle) Asset(rel string) (Asset, bool) {
	for _, a := range b.Assets {
		if a.RelativePath == rel {
			return a, true
		}
	}
	return Asset{}, false
}

// Categorize derives an asset's category from its bundle path.
func Categorize(rel string) Category {
	switch {
	case rel == "templates/spec-template.md":
		return CategorySpec
	case rel == "templates/plan-template.md":
		return CategoryPlan
	case rel == "templates/tasks-template.md":
		return CategoryTasks
	case rel == "memory/constitution.md":
		return CategoryConstitution
	case strings.HasPrefix(rel, "scripts/"):
		return CategoryScript
	case strings.HasPrefix(rel, "commands/"):
		return CategoryWorkflow
	}
	return CategoryTemplate
}

// --- Archive codec ---

// ReadArchive parses a .tar.gz bundle. A single top-level directory shared
// by every entry is stripped; directories and non-regular entries are
// skipped; duplicate paths are an error.
func ReadArchive(r io.Reader, version string) (*Bundle, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	type entry struct {
		name string
		data []byte
		mode fs.FileMode
	}
	var entries []entry

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Clean(strings.TrimPrefix(header.Name, "./"))
		if name == "." || strings.HasPrefix(name, "../") || path.IsAbs(name) {
			return nil, fmt.Errorf("unsafe path %q in archive", header.Name)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s from tar: %w", name, err)
		}
		entries = append(entries, entry{name: name, data: data, mode: fs.FileMode(header.Mode).Perm()})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("archive contains no files")
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	prefix := commonTopDir(names)

	b := &Bundle{Version: version}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		rel := strings.TrimPrefix(e.name, prefix)
		if seen[rel] {
			return nil, fmt.Errorf("duplicate path %q in archive", rel)
		}
		seen[rel] = true
		b.Assets = append(b.Assets, Asset{
			RelativePath: rel,
			Content:      e.data,
			Category:     Categorize(rel),
			Mode:         e.mode,
		})
	}
	sort.Slice(b.Assets, func(i, j int) bool { return b.Assets[i].RelativePath < b.Assets[j].RelativePath })
	return b, nil
}

// commonTopDir returns "dir/" when every name lives under the same
// top-level directory and that directory is not itself a bundle root
// (templates, memory, scripts, commands).
func commonTopDir(names []string) string {
	top := ""
	for _, n := range names {
		dir, _, found := strings.Cut(n, "/")
		if !found || (top != "" && dir != top) {
			return ""
		}
		top = dir
	}
	switch top {
	case "templates", "memory", "scripts", "commands":
		return ""
	}
	return top + "/"
}

// WriteArchive renders b as a .tar.gz with entries in path order.
func WriteArchive(w io.Writer, b *Bundle) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	assets := append([]Asset(nil), b.Assets...)
	sort.Slice(assets, func(i, j int) bool { return assets[i].RelativePath < assets[j].RelativePath })
	for _, a := range assets {
		mode := a.Mode
		if mode == 0 {
			mode = 0o644
		}
		hdr := &tar.Header{
			Name:     a.RelativePath,
			Mode:     int64(mode),
			Size:     int64(len(a.Content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing header for %s: %w", a.RelativePath, err)
		}
		if _, err := tw.Write(a.Content); err != nil {
			return fmt.Errorf("writing %s: %w", a.RelativePath, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar: %w", err)
	}
	return gz.Close()
}

// EncodeArchive is WriteArchive into a byte slice.
func EncodeArchive(b *Bundle) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteArchive(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
