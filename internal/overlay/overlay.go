// Package overlay stacks per-part layer directories into a single merged
// scratch tree so overlay-packages can be installed and overlay scripts
// run with visibility of every layer at or below a given part, without
// requiring privileged overlayfs mounts.
package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Manager owns the project-wide overlay scratch area and enforces that
// only one mount scope is active at a time (nested scopes are explicitly
// disallowed, spec.md §5).
type Manager struct {
	scratchRoot string

	mu     sync.Mutex
	active bool
}

// NewManager builds a Manager whose scratch directories are created under
// scratchRoot (typically <work>/overlay/scratch).
func NewManager(scratchRoot string) *Manager {
	return &Manager{scratchRoot: scratchRoot}
}

// acquire marks a scope active, failing if one is already open.
func (m *Manager) acquire() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return "", fmt.Errorf("overlay: nested mount scopes are not supported")
	}
	m.active = true

	dir := filepath.Join(m.scratchRoot, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.active = false
		return "", fmt.Errorf("overlay: create scratch dir: %w", err)
	}
	return dir, nil
}

// release tears down a scope unconditionally, on every exit path
// including panic/failure.
func (m *Manager) release(dir string) {
	os.RemoveAll(dir)
	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
}

// LayerDirFunc resolves the directory a part's own layer is materialized
// into; callers pass this in as layerDir(partName) when building a stack.
type LayerDirFunc func(partName string) string

// stackLayers merges every directory in layerDir(stackOrder[i]) for
// i in [0, upTo] into dest, in order, so later (higher) layers take
// precedence over earlier ones — the same semantics overlayfs gives a
// bottom-up stack.
func stackLayers(dest string, stackOrder []string, upTo int, layerDir LayerDirFunc) error {
	for i := 0; i <= upTo; i++ {
		src := layerDir(stackOrder[i])
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := mergeInto(dest, src); err != nil {
			return fmt.Errorf("overlay: merge layer %q: %w", stackOrder[i], err)
		}
	}
	return nil
}

func indexOf(stackOrder []string, name string) int {
	for i, n := range stackOrder {
		if n == name {
			return i
		}
	}
	return -1
}
