package overlay

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const opaqueMarker = ".wh..wh..opq"

// IsWhiteoutFile reports whether path is a native overlayfs whiteout: a
// character device with major/minor 0/0.
func IsWhiteoutFile(path string) bool {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return major(stat.Rdev) == 0 && minor(stat.Rdev) == 0
}

// OCIWhiteout produces the OCI ".wh." translation for relpath, used when
// migrating a deletion recorded in a native overlay layer into a tar-based
// stage/prime representation.
func OCIWhiteout(relpath string) string {
	dir, base := filepath.Split(relpath)
	return filepath.Join(dir, ".wh."+base)
}

// isOCIWhiteoutName reports whether base is an OCI-form whiteout marker
// (either the opaque marker or a ".wh.<name>" file whiteout).
func isOCIWhiteoutName(base string) (target string, opaque, whiteout bool) {
	if base == opaqueMarker {
		return "", true, false
	}
	if strings.HasPrefix(base, ".wh.") {
		return strings.TrimPrefix(base, ".wh."), false, true
	}
	return "", false, false
}

// VisibleInLayer returns the paths (relative to srcdir) that would be
// visible if srcdir were stacked on top of destdir, applying standard
// overlayfs whiteout and opaque-directory semantics: whiteout entries
// hide the corresponding path in destdir and are themselves never
// visible; an opaque marker hides every pre-existing entry of its
// containing directory.
func VisibleInLayer(srcdir, destdir string) ([]string, error) {
	hidden := make(map[string]bool)
	var visible []string

	err := filepath.WalkDir(srcdir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcdir {
			return nil
		}
		rel, err := filepath.Rel(srcdir, path)
		if err != nil {
			return err
		}

		if IsWhiteoutFile(path) || d.Name() == opaqueMarker {
			hidden[rel] = true
			return nil
		}
		visible = append(visible, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := visible[:0]
	for _, rel := range visible {
		if hidden[rel] {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

func major(rdev uint64) uint64 { return (rdev >> 8) & 0xfff }
func minor(rdev uint64) uint64 { return rdev & 0xff }
