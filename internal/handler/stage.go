package handler

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/partcraft/partcraft/internal/migrate"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
)

// runStage runs the override-stage scriptlet or the builtin migration of
// p's install output into the project-wide stage area, failing if another
// part already claimed one of its paths, then migrates the visible top of
// the overlay stack into stage the first time it hasn't been (spec.md
// §4.4, §4.5).
func (h *Handler) runStage(ctx context.Context, p *parts.Part) error {
	dirs := h.dirs(p.Name)

	owners, err := h.trackedOwners(steps.Stage, p.Name)
	if err != nil {
		return err
	}

	var result migrate.Result
	if script := p.Spec.OverrideStage; script != "" {
		result, err = h.runOverrideMigration(ctx, script, dirs.Install, h.ProjectDirs.Stage, p.Name, "CRAFT_STAGE")
		if err != nil {
			return fmt.Errorf("handler: stage %s: %w", p.Name, err)
		}
	} else {
		result, err = migrate.Migrate(p.Name, dirs.Install, h.ProjectDirs.Stage, nil, owners)
		if err != nil {
			return fmt.Errorf("handler: stage %s: %w", p.Name, err)
		}
	}

	overlayResult, err := h.migrateOverlayStack(steps.Stage, h.ProjectDirs.Stage, owners)
	if err != nil {
		return fmt.Errorf("handler: stage %s: overlay migration: %w", p.Name, err)
	}
	result.Files = append(result.Files, overlayResult.Files...)
	result.Directories = append(result.Directories, overlayResult.Directories...)

	rec := state.New(steps.Stage, p.Properties(), h.Options.ToMap())
	rec.OverlayHash = h.planOverlayHash
	rec.Files = result.Files
	rec.Directories = result.Directories
	return h.State.Save(p.Name, steps.Stage, rec)
}

// runOverrideMigration runs an override-stage/override-prime scriptlet
// with workDir as its working directory and sharedEnvKey pointing it at
// sharedDir, then diffs sharedDir before/after the run to recover the set
// of paths the scriptlet migrated — the bookkeeping the builtin migration
// gets from walking srcDir directly, but an override scriptlet must do
// its own copying into sharedDir.
func (h *Handler) runOverrideMigration(ctx context.Context, script, workDir, sharedDir, partName, sharedEnvKey string) (migrate.Result, error) {
	beforeFiles, beforeDirs, err := migrate.Snapshot(sharedDir)
	if err != nil {
		return migrate.Result{}, err
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", script)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "CRAFT_PART_NAME="+partName, sharedEnvKey+"="+sharedDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return migrate.Result{}, fmt.Errorf("scriptlet: %w: %s", err, out)
	}

	afterFiles, afterDirs, err := migrate.Snapshot(sharedDir)
	if err != nil {
		return migrate.Result{}, err
	}
	return migrate.Result{
		Files:       migrate.Added(beforeFiles, afterFiles),
		Directories: migrate.Added(beforeDirs, afterDirs),
	}, nil
}

// trackedOwners builds the path->part ownership map every other part has
// already claimed at the given step, used to detect stage/prime
// collisions before migrating.
func (h *Handler) trackedOwners(step steps.Step, exclude string) (map[string]string, error) {
	owners := make(map[string]string)
	for _, name := range h.PartSet.Names() {
		if name == exclude {
			continue
		}
		rec, ok, err := h.State.Load(name, step)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, f := range rec.Files {
			owners[f] = name
		}
		for _, d := range rec.Directories {
			owners[d] = name
		}
	}
	return owners, nil
}
