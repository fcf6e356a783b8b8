// Package fsutil holds the replace-on-write primitive shared by the
// template cache, the workflow state store and artifact rewrites.
//
// A write goes to a temporary file in the destination directory, is
// synced, and is then renamed over the target, so readers observe either
// the previous file or the complete new one.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// beforeRename is a test seam invoked after the temp file is complete and
// before it replaces the target. Returning an error simulates a crash at
// the worst possible moment.
var beforeRename = func(tmpPath string) error { return nil }

// WriteFileAtomic writes data to path with the given permissions.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return WriteAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic streams content produced by fill into path.
func WriteAtomic(path string, perm os.FileMode, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := fill(tmp); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting mode on %s: %w", filepath.Base(path), err)
	}
	if err := beforeRename(tmpPath); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	committed = true
	return nil
}

// SetBeforeRenameHook installs a crash-simulation hook and returns a func
// restoring the previous one. Intended for tests in other packages.
func SetBeforeRenameHook(fn func(tmpPath string) error) (restore func()) {
	prev := beforeRename
	beforeRename = fn
	return func() { beforeRename = prev }
}
