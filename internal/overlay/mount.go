package overlay

// LayerMounter is a scoped acquisition stacking every part layer at or
// below topPart into a single merged directory. The caller may install
// packages or run the overlay scriptlet against MergedDir(); Release must
// run on every exit path, including failure.
type LayerMounter struct {
	manager   *Manager
	mergedDir string
}

// Mount builds a LayerMounter covering stackOrder[0..index(topPart)],
// materializing layerDir(p) for each such part into a fresh scratch
// directory.
func (m *Manager) Mount(stackOrder []string, topPart string, layerDir LayerDirFunc) (*LayerMounter, error) {
	dir, err := m.acquire()
	if err != nil {
		return nil, err
	}

	idx := indexOf(stackOrder, topPart)
	if idx < 0 {
		m.release(dir)
		return nil, &invalidTopPartError{topPart}
	}
	if err := stackLayers(dir, stackOrder, idx, layerDir); err != nil {
		m.release(dir)
		return nil, err
	}

	return &LayerMounter{manager: m, mergedDir: dir}, nil
}

// MergedDir returns the path the caller should treat as the merged top of
// the stack.
func (l *LayerMounter) MergedDir() string { return l.mergedDir }

// Release tears down the scope unconditionally.
func (l *LayerMounter) Release() {
	l.manager.release(l.mergedDir)
}

// PackageCacheMounter is a scoped acquisition identical in shape to
// LayerMounter, used specifically around package installation into the
// top layer so install_packages/fetch_packages run with the full stack
// visible beneath them (spec.md §4.2).
type PackageCacheMounter struct {
	*LayerMounter
}

// MountPackageCache builds a PackageCacheMounter covering the same stack
// a LayerMounter would.
func (m *Manager) MountPackageCache(stackOrder []string, topPart string, layerDir LayerDirFunc) (*PackageCacheMounter, error) {
	lm, err := m.Mount(stackOrder, topPart, layerDir)
	if err != nil {
		return nil, err
	}
	return &PackageCacheMounter{LayerMounter: lm}, nil
}

type invalidTopPartError struct{ name string }

func (e *invalidTopPartError) Error() string {
	return "overlay: part " + e.name + " is not present in the stack order"
}
