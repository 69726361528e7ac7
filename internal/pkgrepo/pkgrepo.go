// Package pkgrepo is the package repository abstraction the Part Handler
// consumes to resolve stage-packages and overlay-packages (spec.md §6).
// It is an external collaborator, not part of the hard core: the core
// only depends on the Repository interface below.
package pkgrepo

import "context"

// Repository fetches and unpacks system packages for a target
// architecture and distribution base.
type Repository interface {
	// FetchStagePackages resolves packageNames for targetArch/base,
	// downloads them into stagePackagesPath, and returns the exact
	// resolved package list (name@version or name@digest) recorded into
	// the PULL state's assets.
	FetchStagePackages(ctx context.Context, cacheDir string, packageNames []string, targetArch, base, stagePackagesPath string) ([]string, error)

	// UnpackStagePackages extracts every package found in
	// stagePackagesPath into installPath.
	UnpackStagePackages(stagePackagesPath, installPath string) error

	// GetPackagesForSourceType returns extra packages a given source
	// type implicitly requires (e.g. a VCS source type may require a
	// VCS client package).
	GetPackagesForSourceType(sourceType string) []string

	// GetInstalledPackages lists packages already unpacked on the host,
	// used by the machine manifest.
	GetInstalledPackages() ([]string, error)
}
