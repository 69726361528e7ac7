package handler

import (
	"context"
	"fmt"

	"github.com/partcraft/partcraft/internal/migrate"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
)

// runPrime runs the override-prime scriptlet or the builtin migration of
// p's own staged files into the project-wide prime area, restricted to
// the paths p itself contributed at STAGE (so one part's PRIME never
// pulls in another part's staged output), then migrates the visible top
// of the overlay stack into prime the first time it hasn't been.
func (h *Handler) runPrime(ctx context.Context, p *parts.Part) error {
	stageRec, ok, err := h.State.Load(p.Name, steps.Stage)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("handler: prime %s: part has no staged output", p.Name)
	}

	own := make(map[string]bool, len(stageRec.Files)+len(stageRec.Directories))
	for _, f := range stageRec.Files {
		own[f] = true
	}
	for _, d := range stageRec.Directories {
		own[d] = true
	}
	filter := func(rel string) bool { return own[rel] }

	owners, err := h.trackedOwners(steps.Prime, p.Name)
	if err != nil {
		return err
	}

	var result migrate.Result
	if script := p.Spec.OverridePrime; script != "" {
		result, err = h.runOverrideMigration(ctx, script, h.ProjectDirs.Stage, h.ProjectDirs.Prime, p.Name, "CRAFT_PRIME")
		if err != nil {
			return fmt.Errorf("handler: prime %s: %w", p.Name, err)
		}
	} else {
		result, err = migrate.Migrate(p.Name, h.ProjectDirs.Stage, h.ProjectDirs.Prime, filter, owners)
		if err != nil {
			return fmt.Errorf("handler: prime %s: %w", p.Name, err)
		}
	}

	overlayResult, err := h.migrateOverlayStack(steps.Prime, h.ProjectDirs.Prime, owners)
	if err != nil {
		return fmt.Errorf("handler: prime %s: overlay migration: %w", p.Name, err)
	}
	result.Files = append(result.Files, overlayResult.Files...)
	result.Directories = append(result.Directories, overlayResult.Directories...)

	rec := state.New(steps.Prime, p.Properties(), h.Options.ToMap())
	rec.Files = result.Files
	rec.Directories = result.Directories
	return h.State.Save(p.Name, steps.Prime, rec)
}
