package migrate

import (
	"os"
	"path/filepath"

	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/partserrors"
)

// OrganizeFiles applies part's organize entries within installDir,
// renaming/moving matched files to their declared destinations, in
// declaration order. It returns the destination paths produced (relative
// to installDir), recorded so a later UPDATE's organize can be scoped
// to only overwrite its own prior output (spec.md §9 redesign decision:
// tightened organize-overwrite semantics).
//
// overwrite must be false for a fresh RUN (any destination collision
// fails), or true for an UPDATE, in which case allowedOverwrite — the
// destination set organize produced last time — is the only set of
// paths this call may replace.
func OrganizeFiles(installDir string, entries []parts.OrganizeEntry, overwrite bool, allowedOverwrite map[string]bool) ([]string, error) {
	var produced []string

	for _, entry := range entries {
		matches, err := filepath.Glob(filepath.Join(installDir, entry.Source))
		if err != nil {
			return nil, err
		}

		for _, src := range matches {
			rel, err := filepath.Rel(installDir, src)
			if err != nil {
				return nil, err
			}
			dest := organizeDestination(entry, rel, len(matches) > 1)
			target := filepath.Join(installDir, dest)

			if err := checkOverwrite(target, dest, overwrite, allowedOverwrite); err != nil {
				return nil, err
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
			if err := os.Rename(src, target); err != nil {
				return nil, err
			}
			produced = append(produced, dest)
		}
	}
	return produced, nil
}

func organizeDestination(entry parts.OrganizeEntry, matchedRel string, multiple bool) string {
	if !multiple {
		return entry.Destination
	}
	return filepath.Join(entry.Destination, filepath.Base(matchedRel))
}

func checkOverwrite(target, dest string, overwrite bool, allowedOverwrite map[string]bool) error {
	_, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if !overwrite {
		return partserrors.NewCollisionError(dest, "organize", "existing install content")
	}
	if allowedOverwrite != nil && !allowedOverwrite[dest] {
		return partserrors.NewCollisionError(dest, "organize-update", "path outside prior organize output")
	}
	return os.RemoveAll(target)
}
