package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Local is a source-handler backed by a local directory tree, the
// builtin pull path for parts whose source is "." or another path on
// disk. The update-build refresh of a part's build directory does not use
// it; the handler copies the pulled source into the build directory itself.
type Local struct {
	path string
}

// NewLocal builds a Local source rooted at path.
func NewLocal(path string) *Local { return &Local{path: path} }

func (l *Local) Pull(_ context.Context, destDir string) error {
	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("source: clear %s: %w", destDir, err)
	}
	return copyTree(l.path, destDir)
}

func (l *Local) Update(_ context.Context, destDir string) error {
	return copyTree(l.path, destDir)
}

func (l *Local) CheckIfOutdated(stateFilePath string) (bool, error) {
	stateInfo, err := os.Stat(stateFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	srcInfo, err := os.Stat(l.path)
	if err != nil {
		return false, fmt.Errorf("source: stat %s: %w", l.path, err)
	}
	return newestModTime(l.path, srcInfo).After(stateInfo.ModTime()), nil
}

func (l *Local) SourceDetails() string { return l.path }

// newestModTime returns the most recent modification time found under
// root, so a change to any file inside a local source tree is detected
// even though the tree's own directory mtime does not change on nested
// edits.
func newestModTime(root string, fallback os.FileInfo) time.Time {
	latest := fallback.ModTime()
	filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err == nil && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest
}

func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch {
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.MkdirAll(filepath.Dir(target), 0o755)
			os.Remove(target)
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
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
