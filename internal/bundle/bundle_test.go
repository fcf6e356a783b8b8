package bundle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleArchive builds a release-style archive whose entries sit under a
// top-level directory, as produced by "git archive --prefix".
func sampleArchive(t *testing.T, version string) []byte {
	t.Helper()
	prefix := "speckit-templates-" + version + "/"
	b := &Bundle{Assets: []Asset{
		{RelativePath: prefix + "templates/spec-template.md", Content: []byte("# Spec " + version)},
		{RelativePath: prefix + "templates/plan-template.md", Content: []byte("# Plan")},
		{RelativePath: prefix + "templates/tasks-template.md", Content: []byte("# Tasks")},
		{RelativePath: prefix + "templates/checklist-template.md", Content: []byte("# Checklist")},
		{RelativePath: prefix + "memory/constitution.md", Content: []byte("# Constitution")},
		{RelativePath: prefix + "scripts/bash/validate-structure.sh", Content: []byte("#!/usr/bin/env bash\n"), Mode: 0o755},
		{RelativePath: prefix + "commands/plan.md", Content: []byte("plan")},
	}}
	data, err := EncodeArchive(b)
	require.NoError(t, err)
	return data
}

func TestReadArchive_StripsTopDirAndCategorizes(t *testing.T) {
	b, err := ReadArchive(bytes.NewReader(sampleArchive(t, "1.0.0")), "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", b.Version)
	assert.Len(t, b.Assets, 7)

	want := map[string]Category{
		"templates/spec-template.md":         CategorySpec,
		"templates/plan-template.md":         CategoryPlan,
		"templates/tasks-template.md":        CategoryTasks,
		"templates/checklist-template.md":    CategoryTemplate,
		"memory/constitution.md":             CategoryConstitution,
		"scripts/bash/validate-structure.sh": CategoryScript,
		"commands/plan.md":                   CategoryWorkflow,
	}
	for rel, cat := range want {
		a, ok := b.Asset(rel)
		require.True(t, ok, rel)
		assert.Equal(t, cat, a.Category, rel)
	}

	script, _ := b.Asset("scripts/bash/validate-structure.sh")
	assert.Equal(t, fs.FileMode(0o755), script.Mode)
}

func TestReadArchive_KeepsBundleRootDirs(t *testing.T) {
	data, err := EncodeArchive(&Bundle{Assets: []Asset{
		{RelativePath: "templates/spec-template.md", Content: []byte("a")},
		{RelativePath: "templates/plan-template.md", Content: []byte("b")},
	}})
	require.NoError(t, err)

	b, err := ReadArchive(bytes.NewReader(data), "2.0.0")
	require.NoError(t, err)
	_, ok := b.Asset("templates/spec-template.md")
	assert.True(t, ok)
}

func TestReadArchive_RejectsDuplicates(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for i := 0; i < 2; i++ {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: "root/templates/spec-template.md", Mode: 0o644, Size: 1, Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte("x"))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	_, err := ReadArchive(&buf, "1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate path")
}

func TestReadArchive_RejectsGarbage(t *testing.T) {
	_, err := ReadArchive(bytes.NewReader([]byte("not gzip")), "1.0.0")
	assert.Error(t, err)
}

// --- Builtin ---

func TestBuiltin_CarriesEverythingAnInstallNeeds(t *testing.T) {
	b := Builtin()
	assert.Equal(t, BuiltinVersion, b.Version)
	assert.Equal(t, OriginBuiltin, b.Origin)

	for _, rel := range []string{
		"templates/spec-template.md",
		"templates/plan-template.md",
		"templates/tasks-template.md",
		"memory/constitution.md",
		"commands/specify.md",
		"scripts/bash/validate-structure.sh",
		"scripts/bash/validate-naming.sh",
		"scripts/bash/validate-frontmatter.sh",
		"scripts/powershell/validate-structure.ps1",
		"scripts/powershell/validate-naming.ps1",
		"scripts/powershell/validate-frontmatter.ps1",
	} {
		_, ok := b.Asset(rel)
		assert.True(t, ok, rel)
	}

	sh, _ := b.Asset("scripts/bash/validate-naming.sh")
	assert.Equal(t, fs.FileMode(0o755), sh.Mode)
	ps, _ := b.Asset("scripts/powershell/validate-naming.ps1")
	assert.Equal(t, fs.FileMode(0o644), ps.Mode)
}

func TestBuiltin_SurvivesArchiveRoundTrip(t *testing.T) {
	orig := Builtin()
	data, err := EncodeArchive(orig)
	require.NoError(t, err)

	back, err := ReadArchive(bytes.NewReader(data), BuiltinVersion)
	require.NoError(t, err)
	require.Len(t, back.Assets, len(orig.Assets))
	for i := range orig.Assets {
		assert.Equal(t, orig.Assets[i].RelativePath, back.Assets[i].RelativePath)
		assert.Equal(t, orig.Assets[i].Content, back.Assets[i].Content)
		assert.Equal(t, orig.Assets[i].Category, back.Assets[i].Category)
	}
}
