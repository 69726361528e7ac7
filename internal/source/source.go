// Package source is the source-handler external collaborator (spec.md
// §6): fetch/update of a part's declared source URI.
package source

import (
	"context"
	"fmt"
	"strings"
)

// Handler pulls and updates a part's source tree.
type Handler interface {
	// Pull fetches the source into destDir for the first time.
	Pull(ctx context.Context, destDir string) error

	// Update refreshes an already-pulled source tree in destDir.
	Update(ctx context.Context, destDir string) error

	// CheckIfOutdated reports whether the source has changed since the
	// state file at stateFilePath was last written.
	CheckIfOutdated(stateFilePath string) (bool, error)

	// SourceDetails is an opaque string written into PullState's assets
	// (e.g. the resolved commit, or the archive's content digest).
	SourceDetails() string
}

// Factory builds a Handler for a declared source URI and optional
// explicit source type, inferring the type from the URI when
// sourceType is empty.
func Factory(sourceURI, sourceType string) (Handler, error) {
	if sourceType == "" {
		sourceType = inferType(sourceURI)
	}
	switch sourceType {
	case "local":
		return NewLocal(sourceURI), nil
	case "tar":
		return NewTar(sourceURI), nil
	default:
		return nil, fmt.Errorf("source: unsupported source-type %q for %q", sourceType, sourceURI)
	}
}

func inferType(uri string) string {
	switch {
	case strings.HasSuffix(uri, ".tar"), strings.HasSuffix(uri, ".tar.gz"), strings.HasSuffix(uri, ".tgz"):
		return "tar"
	default:
		return "local"
	}
}
