package handler

import (
	"context"
	"fmt"
	"os"

	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
	"github.com/partcraft/partcraft/internal/source"
)

// runPull runs the override-pull scriptlet if declared, else invokes the
// source handler's builtin pull, then fetches stage packages, stage
// snaps and overlay packages, recording the resolved set of each into the
// PULL state's assets (spec.md §4.1, §4.4, §6).
func (h *Handler) runPull(ctx context.Context, p *parts.Part) error {
	dirs := h.dirs(p.Name)
	if err := os.MkdirAll(dirs.Src, 0o755); err != nil {
		return fmt.Errorf("handler: pull %s: %w", p.Name, err)
	}

	var sourceDetails string
	switch {
	case p.Spec.OverridePull != "":
		if err := h.runScript(ctx, p.Spec.OverridePull, dirs.Src, p.Name); err != nil {
			return fmt.Errorf("handler: pull %s: %w", p.Name, err)
		}
	case p.Spec.Source != "":
		hnd, err := source.Factory(p.Spec.Source, p.Spec.SourceType)
		if err != nil {
			return fmt.Errorf("handler: pull %s: %w", p.Name, err)
		}
		if err := hnd.Pull(ctx, dirs.Src); err != nil {
			return fmt.Errorf("handler: pull %s: %w", p.Name, err)
		}
		sourceDetails = hnd.SourceDetails()
	}

	stagePkgNames := append([]string{}, p.Spec.StagePackages...)
	stagePkgNames = append(stagePkgNames, h.Packages.GetPackagesForSourceType(p.Spec.SourceType)...)

	var resolvedStagePkgs []string
	if len(stagePkgNames) > 0 {
		var err error
		resolvedStagePkgs, err = h.Packages.FetchStagePackages(ctx, dirs.Packages, stagePkgNames, h.Options.TargetArch, h.Options.Base, dirs.Packages)
		if err != nil {
			return fmt.Errorf("handler: pull %s: fetch stage packages: %w", p.Name, err)
		}
	}

	var resolvedOverlayPkgs []string
	if len(p.Spec.OverlayPackages) > 0 {
		var err error
		resolvedOverlayPkgs, err = h.Packages.FetchStagePackages(ctx, dirs.Packages, p.Spec.OverlayPackages, h.Options.TargetArch, h.Options.Base, dirs.Packages)
		if err != nil {
			return fmt.Errorf("handler: pull %s: fetch overlay packages: %w", p.Name, err)
		}
	}

	var resolvedSnaps []string
	if len(p.Spec.StageSnaps) > 0 && h.Snaps != nil {
		var err error
		resolvedSnaps, err = h.Snaps.DownloadSnaps(ctx, p.Spec.StageSnaps, h.Options.TargetArch, dirs.Snaps)
		if err != nil {
			return fmt.Errorf("handler: pull %s: download stage snaps: %w", p.Name, err)
		}
	}

	rec := state.New(steps.Pull, p.Properties(), h.Options.ToMap())
	rec.Assets = map[string]interface{}{
		"source-details":   sourceDetails,
		"stage-packages":   resolvedStagePkgs,
		"overlay-packages": resolvedOverlayPkgs,
		"stage-snaps":      resolvedSnaps,
	}
	return h.State.Save(p.Name, steps.Pull, rec)
}

// updatePull refreshes an already-pulled source tree without cleaning the
// step: the override-pull scriptlet re-runs if declared, else a local
// source is re-copied or a remote source re-fetched, and the state record
// is rewritten with the new source details.
func (h *Handler) updatePull(ctx context.Context, p *parts.Part) error {
	dirs := h.dirs(p.Name)

	if script := p.Spec.OverridePull; script != "" {
		if err := h.runScript(ctx, script, dirs.Src, p.Name); err != nil {
			return fmt.Errorf("handler: update-pull %s: %w", p.Name, err)
		}
		return h.State.Touch(p.Name, steps.Pull)
	}

	if p.Spec.Source == "" {
		return h.State.Touch(p.Name, steps.Pull)
	}

	hnd, err := source.Factory(p.Spec.Source, p.Spec.SourceType)
	if err != nil {
		return fmt.Errorf("handler: update-pull %s: %w", p.Name, err)
	}
	if err := hnd.Update(ctx, dirs.Src); err != nil {
		return fmt.Errorf("handler: update-pull %s: %w", p.Name, err)
	}

	rec, ok, err := h.State.Load(p.Name, steps.Pull)
	if err != nil {
		return err
	}
	if !ok {
		rec = state.New(steps.Pull, p.Properties(), h.Options.ToMap())
	}
	rec.PartProperties = p.Properties()
	if rec.Assets == nil {
		rec.Assets = map[string]interface{}{}
	}
	rec.Assets["source-details"] = hnd.SourceDetails()
	return h.State.Save(p.Name, steps.Pull, rec)
}
