// Package handler executes a single planned action against a part: the
// per-step RUN/RERUN/UPDATE/REAPPLY/SKIP semantics, organize/migration,
// and the layer-hash bookkeeping that keeps the overlay stack consistent
// (spec.md §4.4).
package handler

import (
	"context"
	"fmt"

	"github.com/partcraft/partcraft/internal/actions"
	"github.com/partcraft/partcraft/internal/callbacks"
	"github.com/partcraft/partcraft/internal/config"
	"github.com/partcraft/partcraft/internal/logging"
	"github.com/partcraft/partcraft/internal/overlay"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/partserrors"
	"github.com/partcraft/partcraft/internal/pkgrepo"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
)

// Handler executes actions against one project's parts.
type Handler struct {
	Options     config.Options
	PartSet     *parts.Set
	StackOrder  []string
	State       *state.Manager
	Overlay     *overlay.Manager
	Packages    pkgrepo.Repository
	Snaps       pkgrepo.SnapRepository
	ProjectDirs parts.ProjectDirs

	// planOverlayHash is the overlay hash the sequencer fixed for the
	// current plan, threaded in by the caller before BUILD/STAGE run so
	// those steps can record it (spec.md §4.3's "store its return value
	// as the plan's overlay hash").
	planOverlayHash string
}

// New builds a Handler for the given part set and project options.
func New(opts config.Options, set *parts.Set, stackOrder []string, mgr *state.Manager, ov *overlay.Manager, pkgs pkgrepo.Repository, snaps pkgrepo.SnapRepository) *Handler {
	return &Handler{
		Options:     opts,
		PartSet:     set,
		StackOrder:  stackOrder,
		State:       mgr,
		Overlay:     ov,
		Packages:    pkgs,
		Snaps:       snaps,
		ProjectDirs: parts.NewProjectDirs(opts.WorkDir),
	}
}

// SetPlanOverlayHash records the overlay hash the current plan fixed, so
// BUILD and STAGE can persist it into their own state records.
func (h *Handler) SetPlanOverlayHash(hash string) { h.planOverlayHash = hash }

func (h *Handler) dirs(partName string) parts.Dirs {
	return parts.PartDirs(h.Options.WorkDir, partName)
}

func (h *Handler) part(name string) (*parts.Part, error) {
	p, ok := h.PartSet.Get(name)
	if !ok {
		return nil, partserrors.NewInvalidPartName(name)
	}
	return p, nil
}

// RunAction dispatches a single action to its step-specific handler,
// following the type-specific semantics of spec.md §4.4.
func (h *Handler) RunAction(ctx context.Context, a actions.Action) error {
	logging.ForAction(a.PartName, a.Step, a.Type.String()).WithField("reason", a.Reason).Info("handler: running action")

	switch a.Type {
	case actions.Skip:
		return nil
	case actions.Reapply:
		return h.reapply(ctx, a)
	case actions.Rerun:
		if err := h.State.CleanFromStep(a.PartName, a.Step); err != nil {
			return err
		}
		return h.runWithCallbacks(ctx, a)
	case actions.Update:
		return h.update(ctx, a)
	case actions.Run:
		return h.runWithCallbacks(ctx, a)
	default:
		return partserrors.NewInvalidAction(fmt.Sprintf("unknown action type %s", a.Type))
	}
}

func (h *Handler) runWithCallbacks(ctx context.Context, a actions.Action) error {
	callbacks.RunPreStep(a)
	if err := h.runStep(ctx, a.PartName, a.Step); err != nil {
		return err
	}
	callbacks.RunPostStep(a)
	return nil
}

func (h *Handler) runStep(ctx context.Context, partName string, step steps.Step) error {
	p, err := h.part(partName)
	if err != nil {
		return err
	}
	switch step {
	case steps.Pull:
		return h.runPull(ctx, p)
	case steps.Overlay:
		return h.runOverlay(ctx, p)
	case steps.Build:
		return h.runBuild(ctx, p)
	case steps.Stage:
		return h.runStage(ctx, p)
	case steps.Prime:
		return h.runPrime(ctx, p)
	default:
		return partserrors.NewInvalidAction(fmt.Sprintf("unknown step %s", step))
	}
}

func (h *Handler) update(ctx context.Context, a actions.Action) error {
	p, err := h.part(a.PartName)
	if err != nil {
		return err
	}

	callbacks.RunPreStep(a)
	switch a.Step {
	case steps.Pull:
		err = h.updatePull(ctx, p)
	case steps.Overlay:
		err = h.updateOverlay(ctx, p)
	case steps.Build:
		err = h.updateBuild(ctx, p)
	default:
		return partserrors.NewInvalidAction(fmt.Sprintf("step %s does not support UPDATE", a.Step))
	}
	if err != nil {
		return err
	}
	callbacks.RunPostStep(a)
	return nil
}

// reapply re-mounts the overlay stack through this part without rerunning
// its overlay script or touching its state record (spec.md §4.4).
func (h *Handler) reapply(ctx context.Context, a actions.Action) error {
	p, err := h.part(a.PartName)
	if err != nil {
		return err
	}
	mounter, err := h.Overlay.Mount(h.StackOrder, p.Name, h.layerDirFor)
	if err != nil {
		return fmt.Errorf("handler: reapply %s: %w", p.Name, err)
	}
	mounter.Release()
	return nil
}

func (h *Handler) layerDirFor(partName string) string {
	return h.dirs(partName).Overlay
}
