package pkgrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/partcraft/partcraft/internal/partserrors"
)

// SnapRepository is the snap-oriented parallel of Repository (spec.md
// §6: "a parallel snap-oriented module").
type SnapRepository interface {
	DownloadSnaps(ctx context.Context, snapNames []string, targetArch, snapsPath string) ([]string, error)
	GetInstalledSnaps() ([]string, error)
}

// OCISnapRepository resolves snap names the same way OCIRepository
// resolves packages: as OCI references, one image per snap.
type OCISnapRepository struct {
	Packages *OCIRepository
}

// DownloadSnaps pulls each snap as "<RefPrefix>/<name>:<arch>" and writes
// its flattened content under snapsPath.
func (r *OCISnapRepository) DownloadSnaps(ctx context.Context, snapNames []string, targetArch, snapsPath string) ([]string, error) {
	if err := os.MkdirAll(snapsPath, 0o755); err != nil {
		return nil, fmt.Errorf("pkgrepo: create snaps dir: %w", err)
	}

	resolved := make([]string, 0, len(snapNames))
	for _, snap := range snapNames {
		ref := r.Packages.refFor(snap, targetArch)
		img, digest, err := r.Packages.pull(ctx, ref, targetArch)
		if err != nil {
			return nil, partserrors.NewOverlayPackageNotFound("", snap)
		}
		if err := writePackageArchive(img, filepath.Join(snapsPath, snap+".snap.tar")); err != nil {
			return nil, fmt.Errorf("pkgrepo: archive snap %s: %w", snap, err)
		}
		resolved = append(resolved, fmt.Sprintf("%s@%s", snap, digest))
	}
	sort.Strings(resolved)
	return resolved, nil
}

// GetInstalledSnaps mirrors Repository.GetInstalledPackages: the
// OCI-backed repository has no host snapd database to query.
func (r *OCISnapRepository) GetInstalledSnaps() ([]string, error) {
	return nil, nil
}
