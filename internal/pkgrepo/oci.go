package pkgrepo

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gzip "github.com/klauspost/compress/gzip"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/partcraft/partcraft/internal/partserrors"
	"github.com/sirupsen/logrus"
)

// OCIRepository resolves each package name as an OCI image reference and
// treats its layers as the package's file tree — the package repository
// and the part handler's "fetch a named input" concern share the exact
// pull/unpack machinery used for the overlay base image.
type OCIRepository struct {
	// RefPrefix is prepended to a bare package name to build a pullable
	// reference, e.g. "registry.example.com/packages".
	RefPrefix string
}

// FetchStagePackages resolves each name to "<RefPrefix>/<name>:<tag>", where
// tag is base with '@' replaced by '-' ("latest" when base is empty), pulls
// it for targetArch, and writes its flattened layer tar under
// stagePackagesPath.
func (r *OCIRepository) FetchStagePackages(ctx context.Context, cacheDir string, packageNames []string, targetArch, base, stagePackagesPath string) ([]string, error) {
	if err := os.MkdirAll(stagePackagesPath, 0o755); err != nil {
		return nil, fmt.Errorf("pkgrepo: create stage packages dir: %w", err)
	}

	resolved := make([]string, 0, len(packageNames))
	for _, pkg := range packageNames {
		ref := r.refFor(pkg, base)
		img, digest, err := r.pull(ctx, ref, targetArch)
		if err != nil {
			return nil, partserrors.NewStagePackageNotFound("", pkg)
		}
		if err := writePackageArchive(img, filepath.Join(stagePackagesPath, pkg+".tar")); err != nil {
			return nil, fmt.Errorf("pkgrepo: archive %s: %w", pkg, err)
		}
		resolved = append(resolved, fmt.Sprintf("%s@%s", pkg, digest))
	}
	sort.Strings(resolved)
	return resolved, nil
}

func (r *OCIRepository) refFor(pkg, base string) string {
	tag := strings.ReplaceAll(base, "@", "-")
	if tag == "" {
		tag = "latest"
	}
	if r.RefPrefix == "" {
		return fmt.Sprintf("%s:%s", pkg, tag)
	}
	return fmt.Sprintf("%s/%s:%s", r.RefPrefix, pkg, tag)
}

func (r *OCIRepository) pull(ctx context.Context, ref, arch string) (v1.Image, string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return nil, "", fmt.Errorf("parse package ref %q: %w", ref, err)
	}
	img, err := remote.Image(parsed, remote.WithContext(ctx),
		remote.WithPlatform(v1.Platform{OS: "linux", Architecture: arch}))
	if err != nil {
		return nil, "", fmt.Errorf("pull package %q: %w", ref, err)
	}
	digest, err := img.Digest()
	if err != nil {
		return nil, "", fmt.Errorf("digest package %q: %w", ref, err)
	}
	return img, digest.String(), nil
}

// writePackageArchive flattens every layer of img into a single tar at
// dest, the package's on-disk representation in stagePackagesPath.
func writePackageArchive(img v1.Image, dest string) error {
	layers, err := img.Layers()
	if err != nil {
		return fmt.Errorf("get layers: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	tw := tar.NewWriter(out)
	defer tw.Close()

	for _, layer := range layers {
		if err := appendLayer(tw, layer); err != nil {
			return err
		}
	}
	return nil
}

func appendLayer(tw *tar.Writer, layer v1.Layer) error {
	rc, err := layer.Compressed()
	if err != nil {
		return fmt.Errorf("read layer: %w", err)
	}
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return fmt.Errorf("gzip layer: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read layer tar: %w", err)
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.Copy(tw, tr); err != nil {
				return err
			}
		}
	}
}

// UnpackStagePackages extracts every "*.tar" package archive found in
// stagePackagesPath into installPath.
func (r *OCIRepository) UnpackStagePackages(stagePackagesPath, installPath string) error {
	entries, err := os.ReadDir(stagePackagesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("pkgrepo: list stage packages: %w", err)
	}
	if err := os.MkdirAll(installPath, 0o755); err != nil {
		return fmt.Errorf("pkgrepo: create install dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tar") {
			continue
		}
		if err := extractTar(filepath.Join(stagePackagesPath, e.Name()), installPath); err != nil {
			return fmt.Errorf("pkgrepo: unpack %s: %w", e.Name(), err)
		}
	}
	return nil
}

func extractTar(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		clean := filepath.Clean(hdr.Name)
		if strings.HasPrefix(clean, "..") {
			continue
		}
		target := filepath.Join(destDir, clean)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			os.MkdirAll(filepath.Dir(target), 0o755)
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

// GetPackagesForSourceType returns extra implicit packages a source type
// requires to fetch/update (e.g. a VCS client).
func (r *OCIRepository) GetPackagesForSourceType(sourceType string) []string {
	switch sourceType {
	case "git":
		return []string{"git"}
	default:
		return nil
	}
}

// GetInstalledPackages is unsupported for the OCI-backed repository: it
// has no notion of a host package database, only fetched package
// archives. Logging a warning mirrors spec.md §7's "warnings, non-fatal"
// guidance for conditions the caller can tolerate.
func (r *OCIRepository) GetInstalledPackages() ([]string, error) {
	logrus.Warn("pkgrepo: GetInstalledPackages has no meaning for the OCI-backed repository")
	return nil, nil
}
