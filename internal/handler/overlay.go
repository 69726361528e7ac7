package handler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/partcraft/partcraft/internal/layerhash"
	"github.com/partcraft/partcraft/internal/migrate"
	"github.com/partcraft/partcraft/internal/overlay"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
)

// runOverlay builds a working view of every layer below p, unpacks p's
// own overlay packages and runs its overlay scriptlet into that view,
// applies the overlay-files filter, then persists the result as p's own
// layer directory — the state the next part's stack reads through
// layerDir (spec.md §4.2, §3).
func (h *Handler) runOverlay(ctx context.Context, p *parts.Part) error {
	dirs := h.dirs(p.Name)

	workDir, cleanup, err := h.lowerLayersView(p.Name)
	if err != nil {
		return fmt.Errorf("handler: overlay %s: %w", p.Name, err)
	}
	defer cleanup()

	if len(p.Spec.OverlayPackages) > 0 {
		if err := h.Packages.UnpackStagePackages(dirs.Packages, workDir); err != nil {
			return fmt.Errorf("handler: overlay %s: unpack overlay packages: %w", p.Name, err)
		}
	}

	if script := p.Spec.OverlayScript; script != "" {
		cmd := exec.CommandContext(ctx, "bash", "-c", script)
		cmd.Dir = workDir
		cmd.Env = append(os.Environ(), "CRAFT_OVERLAY="+workDir, "CRAFT_PART_NAME="+p.Name)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("handler: overlay %s: overlay-script: %w: %s", p.Name, err, out)
		}
	}

	if len(p.Spec.OverlayFiles) > 0 {
		if err := applyOverlayFilter(workDir, p.Spec.OverlayFiles); err != nil {
			return fmt.Errorf("handler: overlay %s: apply overlay filter: %w", p.Name, err)
		}
	}

	if err := os.RemoveAll(dirs.Overlay); err != nil {
		return fmt.Errorf("handler: overlay %s: %w", p.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(dirs.Overlay), 0o755); err != nil {
		return fmt.Errorf("handler: overlay %s: %w", p.Name, err)
	}
	if err := os.Rename(workDir, dirs.Overlay); err != nil {
		return fmt.Errorf("handler: overlay %s: persist layer: %w", p.Name, err)
	}

	previous, err := h.previousLayerHash(p.Name)
	if err != nil {
		return err
	}
	newHash := layerhash.ForPart(p, previous)
	if err := h.State.SaveLayerHash(p.Name, newHash); err != nil {
		return fmt.Errorf("handler: overlay %s: save layer hash: %w", p.Name, err)
	}

	rec := state.New(steps.Overlay, p.Properties(), h.Options.ToMap())
	rec.OverlayHash = newHash.Hex()
	return h.State.Save(p.Name, steps.Overlay, rec)
}

// applyOverlayFilter deletes every path under root whose relative form is
// not in the configured include set, leaving native overlayfs whiteouts
// untouched regardless of the filter (spec.md §4.2/§4.4). A directory is
// only removed once filtering has emptied it; a directory that still
// holds an included descendant survives even if it doesn't itself match.
func applyOverlayFilter(root string, patterns []string) error {
	type entry struct {
		path string
		keep bool
		dir  bool
	}
	var entries []entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if overlay.IsWhiteoutFile(path) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		entries = append(entries, entry{path: path, keep: keepOverlayPath(rel, patterns), dir: d.IsDir()})
		return nil
	})
	if err != nil {
		return err
	}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.keep {
			continue
		}
		if rmErr := os.Remove(e.path); rmErr != nil && !os.IsNotExist(rmErr) && !isDirNotEmpty(rmErr) {
			return rmErr
		}
	}
	return nil
}

// keepOverlayPath reports whether rel is in patterns' include set: plain
// globs add to the set, a "-"-prefixed glob subtracts from it, evaluated
// in declaration order so a later entry overrides an earlier one.
func keepOverlayPath(rel string, patterns []string) bool {
	keep := false
	for _, pattern := range patterns {
		exclude := strings.HasPrefix(pattern, "-")
		glob := strings.TrimPrefix(pattern, "-")
		if !overlayGlobMatches(glob, rel) {
			continue
		}
		keep = !exclude
	}
	return keep
}

// overlayGlobMatches matches pattern against rel directly, or against any
// leading path segment of rel, so a pattern naming a directory also
// covers everything under it.
func overlayGlobMatches(pattern, rel string) bool {
	if ok, _ := filepath.Match(pattern, rel); ok {
		return true
	}
	segments := strings.Split(rel, string(filepath.Separator))
	for i := 1; i < len(segments); i++ {
		if ok, _ := filepath.Match(pattern, filepath.Join(segments[:i]...)); ok {
			return true
		}
	}
	return false
}

func isDirNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY)
}

// lowerLayersView mounts every part strictly below name in the stack
// order into a scratch directory; the mount scope stays active until the
// returned cleanup is called. If name is first in the stack, it returns a
// fresh empty directory instead.
func (h *Handler) lowerLayersView(name string) (string, func(), error) {
	idx := -1
	for i, n := range h.StackOrder {
		if n == name {
			idx = i
			break
		}
	}
	if idx <= 0 {
		dir, err := os.MkdirTemp(h.ProjectDirs.Overlay, "layer-*")
		if err != nil {
			return "", func() {}, err
		}
		return dir, func() { os.RemoveAll(dir) }, nil
	}

	mounter, err := h.Overlay.MountPackageCache(h.StackOrder, h.StackOrder[idx-1], h.layerDirFor)
	if err != nil {
		return "", func() {}, err
	}
	return mounter.MergedDir(), mounter.Release, nil
}

// updateOverlay is unreachable: the sequencer never reports OVERLAY as
// outdated, so it never emits UPDATE for it, and an overlay change is
// planned as a RERUN, since re-stacking a live overlay layer in place
// cannot be expressed without re-running the scriptlet (SPEC_FULL.md §12
// redesign decision 1).
func (h *Handler) updateOverlay(ctx context.Context, p *parts.Part) error {
	panic("handler: update-overlay is unreachable; the sequencer must emit RERUN for overlay changes")
}

// previousLayerHash returns the layer hash of the part immediately before
// name in the overlay stack order, or the project's configured base hash
// (or the zero hash) if name is first.
func (h *Handler) previousLayerHash(name string) (layerhash.Hash, error) {
	idx := -1
	for i, n := range h.StackOrder {
		if n == name {
			idx = i
			break
		}
	}
	if idx <= 0 {
		if h.Options.BaseLayerHash != "" {
			return layerhash.FromHex(h.Options.BaseLayerHash)
		}
		return layerhash.Hash{}, nil
	}

	prevName := h.StackOrder[idx-1]
	hex, ok, err := h.State.GetLayerHash(prevName)
	if err != nil {
		return layerhash.Hash{}, fmt.Errorf("handler: previous layer hash for %s: %w", prevName, err)
	}
	if !ok {
		return layerhash.Hash{}, nil
	}
	return layerhash.FromHex(hex)
}

// overlayMarker records what a stage/prime overlay migration contributed,
// persisted at "<overlay>/{stage,prime}_overlay" (spec.md §4.4, §6) so a
// later plan run knows the visible top of the overlay stack has already
// been migrated into that shared area.
type overlayMarker struct {
	Files       []string `yaml:"files,omitempty"`
	Directories []string `yaml:"directories,omitempty"`
}

func (h *Handler) overlayMarkerPath(step steps.Step) string {
	switch step {
	case steps.Stage:
		return filepath.Join(h.ProjectDirs.Overlay, "stage_overlay")
	case steps.Prime:
		return filepath.Join(h.ProjectDirs.Overlay, "prime_overlay")
	default:
		return ""
	}
}

func (h *Handler) loadOverlayMarker(step steps.Step) (overlayMarker, bool, error) {
	data, err := os.ReadFile(h.overlayMarkerPath(step))
	if err != nil {
		if os.IsNotExist(err) {
			return overlayMarker{}, false, nil
		}
		return overlayMarker{}, false, err
	}
	var m overlayMarker
	if err := yaml.Unmarshal(data, &m); err != nil {
		return overlayMarker{}, false, err
	}
	return m, true, nil
}

func (h *Handler) saveOverlayMarker(step steps.Step, m overlayMarker) error {
	path := h.overlayMarkerPath(step)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (h *Handler) removeOverlayMarker(step steps.Step) error {
	if err := os.Remove(h.overlayMarkerPath(step)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// overlayStackTop returns the persisted overlay directory of the last
// part in stack order whose OVERLAY step has already run — the visible
// top of the overlay stack at the moment a STAGE/PRIME migration reads
// it — or "" if no part in the stack has overlaid yet.
func (h *Handler) overlayStackTop() string {
	for i := len(h.StackOrder) - 1; i >= 0; i-- {
		name := h.StackOrder[i]
		if h.State.HasStepRun(name, steps.Overlay) {
			return h.dirs(name).Overlay
		}
	}
	return ""
}

// migrateOverlayStack migrates the visible top of the overlay stack into
// sharedDir the first time step's "*_overlay" marker is absent; later
// calls are a no-op (spec.md §4.4: "if this is the first staged part
// with overlay or if stage_overlay state is absent, migrate the visible
// top of the overlay stack").
func (h *Handler) migrateOverlayStack(step steps.Step, sharedDir string, owners map[string]string) (migrate.Result, error) {
	if _, ok, err := h.loadOverlayMarker(step); err != nil {
		return migrate.Result{}, err
	} else if ok {
		return migrate.Result{}, nil
	}

	top := h.overlayStackTop()
	if top == "" {
		return migrate.Result{}, nil
	}

	visible, err := overlay.VisibleInLayer(top, sharedDir)
	if err != nil {
		return migrate.Result{}, fmt.Errorf("overlay visibility: %w", err)
	}
	include := make(map[string]bool, len(visible))
	for _, rel := range visible {
		include[rel] = true
	}
	filter := func(rel string) bool { return include[rel] }

	result, err := migrate.Migrate("overlay", top, sharedDir, filter, owners)
	if err != nil {
		return migrate.Result{}, err
	}

	if err := h.saveOverlayMarker(step, overlayMarker{Files: result.Files, Directories: result.Directories}); err != nil {
		return migrate.Result{}, err
	}
	return result, nil
}
