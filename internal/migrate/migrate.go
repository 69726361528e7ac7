// Package migrate moves a part's install output into a shared stage or
// prime directory, and tears it back down again on clean, without
// clobbering paths another part still owns (spec.md §4.5).
package migrate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/partcraft/partcraft/internal/partserrors"
)

// FilterFunc decides whether a relative path should be migrated. A nil
// filter migrates everything.
type FilterFunc func(rel string) bool

// Result is the set of paths one part's migration contributed to a
// shared directory, the same shape StepState persists as Files/
// Directories.
type Result struct {
	Files       []string
	Directories []string
}

// Migrate copies srcDir into sharedDir, restricted to paths filter
// accepts, preserving symlinks and permissions. owners maps an
// already-claimed relative path to the part name that claimed it; a path
// this migration would also produce, but that's claimed by a different
// part, fails with a CollisionError.
func Migrate(partName, srcDir, sharedDir string, filter FilterFunc, owners map[string]string) (Result, error) {
	var result Result

	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return result, nil
	}

	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if filter != nil && !filter(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if owner, claimed := owners[rel]; claimed && owner != partName {
			return partserrors.NewCollisionError(rel, partName, owner)
		}

		target := filepath.Join(sharedDir, rel)
		switch {
		case info.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return err
			}
			result.Directories = append(result.Directories, rel)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.MkdirAll(filepath.Dir(target), 0o755)
			os.Remove(target)
			if err := os.Symlink(link, target); err != nil {
				return err
			}
			result.Files = append(result.Files, rel)
		default:
			if err := copyFileMode(path, target, info.Mode().Perm()); err != nil {
				return err
			}
			result.Files = append(result.Files, rel)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func copyFileMode(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// CleanSharedArea removes ownFiles/ownDirs from sharedDir, except any
// path also claimed by another part (per otherFiles/otherDirs, built by
// the caller from every other part's currently-tracked state). Missing
// entries are warnings, never fatal. Directories are removed in
// reverse-sorted order and only if empty, so a directory another part
// still populates survives.
func CleanSharedArea(sharedDir string, ownFiles, ownDirs []string, otherFiles, otherDirs map[string]bool) []error {
	var warnings []error

	for _, f := range ownFiles {
		if otherFiles[f] {
			continue
		}
		if err := os.Remove(filepath.Join(sharedDir, f)); err != nil && !os.IsNotExist(err) {
			warnings = append(warnings, fmt.Errorf("migrate: remove %s: %w", f, err))
		}
	}

	remaining := make([]string, 0, len(ownDirs))
	for _, d := range ownDirs {
		if !otherDirs[d] {
			remaining = append(remaining, d)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(remaining)))
	for _, d := range remaining {
		path := filepath.Join(sharedDir, d)
		entries, err := os.ReadDir(path)
		if err != nil {
			if !os.IsNotExist(err) {
				warnings = append(warnings, fmt.Errorf("migrate: read dir %s: %w", d, err))
			}
			continue
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			warnings = append(warnings, fmt.Errorf("migrate: remove dir %s: %w", d, err))
		}
	}
	return warnings
}

// SetOf builds a membership set from a flat list of tracked paths across
// every part other than exclude, the shape CleanSharedArea's
// otherFiles/otherDirs maps want.
func SetOf(trackedByPart map[string][]string, exclude string) map[string]bool {
	set := make(map[string]bool)
	for part, paths := range trackedByPart {
		if part == exclude {
			continue
		}
		for _, p := range paths {
			set[p] = true
		}
	}
	return set
}

// Snapshot returns every relative file/directory path currently present
// under dir, split into files and directories. A missing dir snapshots as
// empty, the same "nothing migrated yet" treatment Migrate gives srcDir.
func Snapshot(dir string) (files, dirs map[string]bool, err error) {
	files = make(map[string]bool)
	dirs = make(map[string]bool)

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == dir {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if info.IsDir() {
			dirs[rel] = true
		} else {
			files[rel] = true
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return nil, nil, walkErr
	}
	return files, dirs, nil
}

// Added returns the paths present in after but not in before, sorted —
// what an override scriptlet contributed to a shared area between two
// Snapshot calls.
func Added(before, after map[string]bool) []string {
	var out []string
	for rel := range after {
		if !before[rel] {
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out
}
