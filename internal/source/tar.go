package source

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	gzip "github.com/klauspost/compress/gzip"
)

// Tar is a source-handler that unpacks a local or remote tarball,
// gzipped or not, into the part's source directory.
type Tar struct {
	uri string
}

// NewTar builds a Tar source for the given local path or http(s) URL.
func NewTar(uri string) *Tar { return &Tar{uri: uri} }

func (t *Tar) Pull(ctx context.Context, destDir string) error {
	if err := os.RemoveAll(destDir); err != nil {
		return fmt.Errorf("source: clear %s: %w", destDir, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	rc, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	return extractTarStream(rc, destDir)
}

// Update re-fetches and re-extracts over the existing tree; tar sources
// have no incremental update, so it behaves identically to Pull minus
// the initial clear (archive members overwrite in place).
func (t *Tar) Update(ctx context.Context, destDir string) error {
	rc, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	return extractTarStream(rc, destDir)
}

func (t *Tar) CheckIfOutdated(stateFilePath string) (bool, error) {
	if strings.HasPrefix(t.uri, "http://") || strings.HasPrefix(t.uri, "https://") {
		// Remote archives have no cheap freshness signal available
		// without a full re-fetch; treat as never outdated.
		return false, nil
	}
	stateInfo, err := os.Stat(stateFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	srcInfo, err := os.Stat(t.uri)
	if err != nil {
		return false, fmt.Errorf("source: stat %s: %w", t.uri, err)
	}
	return srcInfo.ModTime().After(stateInfo.ModTime()), nil
}

func (t *Tar) SourceDetails() string { return t.uri }

func (t *Tar) open(ctx context.Context) (io.ReadCloser, error) {
	if strings.HasPrefix(t.uri, "http://") || strings.HasPrefix(t.uri, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.uri, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("source: fetch %s: %w", t.uri, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("source: fetch %s: status %s", t.uri, resp.Status)
		}
		return resp.Body, nil
	}
	return os.Open(t.uri)
}

// extractTarStream detects gzip compression by magic bytes and extracts
// the tar stream into destDir, preserving symlinks and path-traversal
// safety (grounded on the same whiteout-free extraction logic the overlay
// image unpacker uses for OCI layers).
func extractTarStream(r io.Reader, destDir string) error {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return fmt.Errorf("source: read archive: %w", err)
	}

	var tr *tar.Reader
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("source: gzip archive: %w", err)
		}
		defer gz.Close()
		tr = tar.NewReader(gz)
	} else {
		tr = tar.NewReader(br)
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("source: read tar entry: %w", err)
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
			os.Chtimes(target, hdr.ModTime, hdr.ModTime)
		}
	}
}
