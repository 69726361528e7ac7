package overlay

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// mergeInto applies src on top of dest, honoring native overlayfs whiteout
// semantics: a char-0/0 whiteout at <rel> removes dest/<rel> instead of
// being copied; an opaque marker clears every pre-existing entry of its
// containing directory in dest before src's own entries for that
// directory are applied.
//
// Copies happen by walking the tree directly rather than shelling out to
// tar, since whiteout entries must be intercepted per-path as they are
// encountered rather than extracted.
func mergeInto(dest, src string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if IsWhiteoutFile(path) {
			if err := os.RemoveAll(target); err != nil {
				return fmt.Errorf("apply whiteout %s: %w", rel, err)
			}
			return nil
		}
		if d.Name() == opaqueMarker {
			if err := clearDir(filepath.Join(dest, filepath.Dir(rel))); err != nil {
				return fmt.Errorf("apply opaque marker %s: %w", rel, err)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		default:
			return copyFile(target, path, info.Mode().Perm())
		}
	})
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(target, src string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	os.Remove(target)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
