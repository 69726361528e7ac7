package state

import (
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/steps"
)

// DirtyReport describes why a step is no longer valid with respect to the
// current part spec.
type DirtyReport struct {
	Dirty  bool
	Reason string
}

// OutdatedReport describes why a step's output predates an input it
// consumed.
type OutdatedReport struct {
	Outdated bool
	Reason   string
}

// DirtyOptions carries the extra, non-property-based dirty conditions the
// sequencer supplies per step (spec.md §4.1).
type DirtyOptions struct {
	// DependencyStageNewer is true if any dependency part's STAGE state
	// is newer than this part's BUILD state (BUILD-only condition).
	DependencyStageNewer bool
	// CurrentOverlayHash is the freshly computed overlay hash for this
	// plan; compared against the persisted record's OverlayHash for
	// OVERLAY, BUILD and STAGE steps.
	CurrentOverlayHash string
}

// CheckIfDirty returns a DirtyReport for (part, step). It is dirty if any
// property of interest changed, or — for BUILD — a dependency's STAGE ran
// more recently, or — for OVERLAY/BUILD/STAGE — the persisted overlay
// hash no longer matches the freshly computed one.
func (m *Manager) CheckIfDirty(p *parts.Part, step steps.Step, opts DirtyOptions) (DirtyReport, error) {
	rec, ok, err := m.Load(p.Name, step)
	if err != nil {
		return DirtyReport{}, err
	}
	if !ok {
		return DirtyReport{}, nil
	}

	if field := rec.Diff(p.Properties()); field != "" {
		return DirtyReport{Dirty: true, Reason: DirtyReason(field)}, nil
	}

	switch step {
	case steps.Build:
		if opts.DependencyStageNewer {
			return DirtyReport{Dirty: true, Reason: "a dependency was staged more recently"}, nil
		}
	}

	switch step {
	case steps.Overlay, steps.Build, steps.Stage:
		if opts.CurrentOverlayHash != "" && rec.OverlayHash != "" && rec.OverlayHash != opts.CurrentOverlayHash {
			return DirtyReport{Dirty: true, Reason: "overlay changed"}, nil
		}
	}

	return DirtyReport{}, nil
}

// OutdatedOptions carries the timestamp comparisons the sequencer/handler
// supply per step.
type OutdatedOptions struct {
	// SourceNewer is true if the part's source tree changed since PULL
	// last ran (PULL-only condition, delegated to the source handler).
	SourceNewer bool
	// LowerStepNewer is true if a step this step consumes changed more
	// recently (BUILD: its own PULL; update-build: the local source).
	LowerStepNewer bool
}

// CheckIfOutdated returns an OutdatedReport for (part, step).
func (m *Manager) CheckIfOutdated(p *parts.Part, step steps.Step, opts OutdatedOptions) (OutdatedReport, error) {
	_, ok, err := m.Load(p.Name, step)
	if err != nil {
		return OutdatedReport{}, err
	}
	if !ok {
		return OutdatedReport{}, nil
	}

	if step == steps.Pull && opts.SourceNewer {
		return OutdatedReport{Outdated: true, Reason: "source changed"}, nil
	}
	if opts.LowerStepNewer {
		return OutdatedReport{Outdated: true, Reason: "a prerequisite step ran more recently"}, nil
	}
	return OutdatedReport{}, nil
}

// ShouldStepRun reports whether (part, step) has never run, is dirty, or
// is outdated.
func (m *Manager) ShouldStepRun(p *parts.Part, step steps.Step, dirty DirtyOptions, outdated OutdatedOptions) (bool, error) {
	if !m.HasStepRun(p.Name, step) {
		return true, nil
	}
	dr, err := m.CheckIfDirty(p, step, dirty)
	if err != nil {
		return false, err
	}
	if dr.Dirty {
		return true, nil
	}
	or, err := m.CheckIfOutdated(p, step, outdated)
	if err != nil {
		return false, err
	}
	return or.Outdated, nil
}
