package handler

import (
	"fmt"
	"os"

	"github.com/partcraft/partcraft/internal/logging"
	"github.com/partcraft/partcraft/internal/migrate"
	"github.com/partcraft/partcraft/internal/steps"
)

// CleanStep tears down everything a RUN/RERUN of step produced for
// partName, then drops its persisted state (spec.md §4.5). It is the
// per-step specialization clean_step dispatches to: PULL/BUILD remove
// their own directories outright, STAGE/PRIME additionally subtract
// every other part's still-tracked paths (and the overlay stack's
// migrated paths, if any) before removing their shared output, and once
// no other real part still has state at that step, also remove the
// overlay migration itself along with its "*_overlay" marker.
func (h *Handler) CleanStep(partName string, step steps.Step) error {
	dirs := h.dirs(partName)

	switch step {
	case steps.Pull:
		for _, dir := range []string{dirs.Src, dirs.Packages, dirs.Snaps} {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("handler: clean pull %s: %w", partName, err)
			}
		}
	case steps.Overlay:
		// Removes the persisted layer directory (this part's own merged
		// overlay content, see parts.Dirs.Overlay) and the layer-hash
		// file spec.md §4.4 names explicitly; the transient merge view
		// built during OVERLAY/RUN is already torn down by Release.
		if err := os.RemoveAll(dirs.Overlay); err != nil {
			return fmt.Errorf("handler: clean overlay %s: %w", partName, err)
		}
		if err := os.Remove(dirs.LayerHashFile()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("handler: clean overlay %s: %w", partName, err)
		}
	case steps.Build:
		for _, dir := range []string{dirs.Build, dirs.Install} {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("handler: clean build %s: %w", partName, err)
			}
		}
	case steps.Stage:
		if err := h.cleanMigratedArea(partName, steps.Stage, h.ProjectDirs.Stage); err != nil {
			return err
		}
	case steps.Prime:
		if err := h.cleanMigratedArea(partName, steps.Prime, h.ProjectDirs.Prime); err != nil {
			return err
		}
	}

	return h.State.RemoveState(partName, step)
}

func (h *Handler) cleanMigratedArea(partName string, step steps.Step, sharedDir string) error {
	rec, ok, err := h.State.Load(partName, step)
	if err != nil {
		return err
	}

	trackedFiles := make(map[string][]string)
	trackedDirs := make(map[string][]string)
	otherPartsRemain := false
	for _, name := range h.PartSet.Names() {
		other, ok, err := h.State.Load(name, step)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		trackedFiles[name] = other.Files
		trackedDirs[name] = other.Directories
		if name != partName {
			otherPartsRemain = true
		}
	}

	marker, hasMarker, err := h.loadOverlayMarker(step)
	if err != nil {
		return err
	}
	if hasMarker {
		trackedFiles["overlay"] = marker.Files
		trackedDirs["overlay"] = marker.Directories
	}

	if ok {
		warnings := migrate.CleanSharedArea(sharedDir, rec.Files, rec.Directories,
			migrate.SetOf(trackedFiles, partName), migrate.SetOf(trackedDirs, partName))
		for _, w := range warnings {
			logging.ForStep(partName, step).WithError(w).Warn("handler: clean shared area")
		}
	}

	if hasMarker && !otherPartsRemain {
		warnings := migrate.CleanSharedArea(sharedDir, marker.Files, marker.Directories, nil, nil)
		for _, w := range warnings {
			logging.ForStep(partName, step).WithError(w).Warn("handler: clean overlay migration")
		}
		if err := h.removeOverlayMarker(step); err != nil {
			return err
		}
	}
	return nil
}
