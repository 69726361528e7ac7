// Package sequencer plans a totally ordered action list for a target
// step over a project's parts, honoring dependency ordering, overlay
// stack consistency, dirtiness and outdatedness, and idempotence
// (spec.md §4.3).
package sequencer

import (
	"fmt"

	"github.com/partcraft/partcraft/internal/actions"
	"github.com/partcraft/partcraft/internal/config"
	"github.com/partcraft/partcraft/internal/layerhash"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/source"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
)

// Plan produces the ordered action list for targetStep restricted to
// partNames (every part, in dependency order, if partNames is empty).
func Plan(set *parts.Set, mgr *state.Manager, opts config.Options, targetStep steps.Step, partNames []string) ([]actions.Action, error) {
	stackOrder, err := set.SortedNames()
	if err != nil {
		return nil, err
	}

	pl := &planner{
		set:         set,
		mgr:         mgr,
		opts:        opts,
		stackOrder:  stackOrder,
		added:       make(map[string]bool),
		overlayRan:  make(map[string]bool),
		invalidated: make(map[string]bool),
	}
	if err := pl.planFor(targetStep, partNames, ""); err != nil {
		return nil, err
	}
	return pl.acts, nil
}

type planner struct {
	set        *parts.Set
	mgr        *state.Manager
	opts       config.Options
	stackOrder []string

	acts             []actions.Action
	added            map[string]bool
	overlayRan       map[string]bool
	invalidated      map[string]bool
	overlayHashFixed bool
	overlayHash      string
}

func (pl *planner) lastPart() string {
	return pl.stackOrder[len(pl.stackOrder)-1]
}

func (pl *planner) indexOf(name string) int {
	for i, n := range pl.stackOrder {
		if n == name {
			return i
		}
	}
	return -1
}

func (pl *planner) selectParts(names []string) []string {
	if len(names) == 0 {
		return pl.stackOrder
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []string
	for _, n := range pl.stackOrder {
		if wanted[n] {
			out = append(out, n)
		}
	}
	return out
}

func (pl *planner) emit(a actions.Action) { pl.acts = append(pl.acts, a) }

// planFor is the recursive entry point: it processes every step up to
// and including targetStep, for the given (explicit) part selection,
// stamping reasonOverride onto whatever it emits when set (the
// "required to X" label a prerequisite sub-plan carries).
func (pl *planner) planFor(targetStep steps.Step, names []string, reasonOverride string) error {
	selected := pl.selectParts(names)
	sequence := append(append([]steps.Step{}, targetStep.PreviousSteps()...), targetStep)

	explicit := make(map[string]bool, len(names))
	for _, n := range names {
		explicit[n] = true
	}
	allSelected := len(names) == 0

	for _, currentStep := range sequence {
		for _, name := range selected {
			p, ok := pl.set.Get(name)
			if !ok {
				return fmt.Errorf("sequencer: unknown part %q", name)
			}

			if currentStep == steps.Overlay {
				reason := fmt.Sprintf("required to overlay '%s'", p.Name)
				h, err := pl.ensureOverlayConsistency(p.Name, reason, true)
				if err != nil {
					return err
				}
				p.LayerHash = h.Bytes()
			} else {
				seesOverlay := pl.set.HasOverlayBelowOrAt(pl.stackOrder, p.Name)
				hasOverlay := p.HasOverlay()
				if !pl.overlayHashFixed &&
					((currentStep == steps.Build && seesOverlay) || (currentStep == steps.Stage && hasOverlay)) {
					reason := fmt.Sprintf("required to %s '%s'", currentStep.Verb(), p.Name)
					h, err := pl.ensureOverlayConsistency(pl.lastPart(), reason, false)
					if err != nil {
						return err
					}
					pl.overlayHash = h.Hex()
					pl.overlayHashFixed = true
				}
			}

			isExplicit := allSelected || explicit[name]
			if err := pl.addStepActions(currentStep, targetStep, p, isExplicit, reasonOverride); err != nil {
				return err
			}
		}
	}
	return nil
}

func (pl *planner) addStepActions(step, targetStep steps.Step, p *parts.Part, explicit bool, reasonOverride string) error {
	key := p.Name + "|" + step.String()
	if pl.added[key] {
		return nil
	}

	reasonOr := func(fallback string) string {
		if reasonOverride != "" {
			return reasonOverride
		}
		return fallback
	}

	// hasRun folds in cascade invalidation: once an earlier step
	// of this same part RUN/RERUN this plan, the handler's CleanFromStep
	// will wipe every later step's persisted state too (state.Manager's
	// CleanFromStep removes step and step.NextSteps()), so a later step
	// must be planned as fresh even though its on-disk record still
	// exists right now.
	hasRun := pl.mgr.HasStepRun(p.Name, step) && !pl.invalidated[p.Name]
	if !hasRun {
		if err := pl.emitPrerequisite(step, p); err != nil {
			return err
		}
		pl.added[key] = true
		pl.emitTagged(p.Name, step, actions.Run, reasonOr(""))
		pl.invalidated[p.Name] = true
		return nil
	}

	if step == targetStep && explicit {
		if err := pl.emitPrerequisite(step, p); err != nil {
			return err
		}
		pl.added[key] = true
		pl.emitTagged(p.Name, step, actions.Rerun, reasonOr("requested step"))
		pl.invalidated[p.Name] = true
		return nil
	}

	dr, err := pl.mgr.CheckIfDirty(p, step, pl.dirtyOptionsFor(p, step))
	if err != nil {
		return err
	}
	if dr.Dirty {
		if err := pl.emitPrerequisite(step, p); err != nil {
			return err
		}
		pl.added[key] = true
		pl.emitTagged(p.Name, step, actions.Rerun, reasonOr(dr.Reason))
		pl.invalidated[p.Name] = true
		return nil
	}

	or, err := pl.mgr.CheckIfOutdated(p, step, pl.outdatedOptionsFor(p, step))
	if err != nil {
		return err
	}
	if or.Outdated {
		pl.added[key] = true
		switch step {
		case steps.Pull, steps.Overlay, steps.Build:
			// UPDATE refreshes in place; the handler never cleans
			// downstream state for it, so no cascade here.
			pl.emitTagged(p.Name, step, actions.Update, reasonOr(or.Reason))
		default:
			if err := pl.emitPrerequisite(step, p); err != nil {
				return err
			}
			pl.emitTagged(p.Name, step, actions.Rerun, reasonOr(or.Reason))
			pl.invalidated[p.Name] = true
		}
		_ = pl.mgr.Touch(p.Name, step)
		return nil
	}

	pl.added[key] = true
	if step == steps.Overlay && pl.anyEarlierOverlayRan(p.Name) {
		pl.emit(actions.New(p.Name, step, actions.WithType(actions.Reapply), actions.WithReason("previous layer changed")))
		return nil
	}
	pl.emit(actions.New(p.Name, step, actions.WithType(actions.Skip), actions.WithReason("already ran")))
	return nil
}

// emitTagged emits a RUN/RERUN/UPDATE action, recording it for REAPPLY
// propagation when step is OVERLAY.
func (pl *planner) emitTagged(partName string, step steps.Step, t actions.Type, reason string) {
	if reason != "" {
		pl.emit(actions.New(partName, step, actions.WithType(t), actions.WithReason(reason)))
	} else {
		pl.emit(actions.New(partName, step, actions.WithType(t)))
	}
	if step == steps.Overlay && (t == actions.Run || t == actions.Rerun) {
		pl.overlayRan[partName] = true
	}
}

func (pl *planner) anyEarlierOverlayRan(name string) bool {
	idx := pl.indexOf(name)
	for ranName := range pl.overlayRan {
		if pl.indexOf(ranName) < idx {
			return true
		}
	}
	return false
}

// emitPrerequisite recurses into the dependency-prerequisite step whose
// artifacts step consumes, for every dependency that still needs to run.
func (pl *planner) emitPrerequisite(step steps.Step, p *parts.Part) error {
	switch step {
	case steps.Pull:
		return nil

	case steps.Overlay:
		idx := pl.indexOf(p.Name)
		if idx <= 0 {
			return nil
		}
		prevName := pl.stackOrder[idx-1]
		prev, _ := pl.set.Get(prevName)
		should, err := pl.shouldStepRun(prev, steps.Overlay)
		if err != nil || !should {
			return err
		}
		return pl.planFor(steps.Overlay, []string{prevName}, fmt.Sprintf("required to overlay '%s'", p.Name))

	case steps.Build:
		for _, dep := range pl.set.Dependencies(p.Name) {
			should, err := pl.shouldStepRun(dep, steps.Stage)
			if err != nil {
				return err
			}
			if should {
				if err := pl.planFor(steps.Stage, []string{dep.Name}, fmt.Sprintf("required to build '%s'", p.Name)); err != nil {
					return err
				}
			}
		}
		return nil

	case steps.Stage:
		should, err := pl.shouldStepRun(p, steps.Build)
		if err != nil || !should {
			return err
		}
		return pl.planFor(steps.Build, []string{p.Name}, fmt.Sprintf("required to stage '%s'", p.Name))

	case steps.Prime:
		should, err := pl.shouldStepRun(p, steps.Stage)
		if err != nil || !should {
			return err
		}
		return pl.planFor(steps.Stage, []string{p.Name}, fmt.Sprintf("required to prime '%s'", p.Name))

	default:
		return nil
	}
}

func (pl *planner) shouldStepRun(p *parts.Part, step steps.Step) (bool, error) {
	return pl.mgr.ShouldStepRun(p, step, pl.dirtyOptionsFor(p, step), pl.outdatedOptionsFor(p, step))
}

func (pl *planner) dirtyOptionsFor(p *parts.Part, step steps.Step) state.DirtyOptions {
	opts := state.DirtyOptions{}
	switch step {
	case steps.Build:
		opts.DependencyStageNewer = pl.dependencyStageNewer(p)
		if pl.overlayHashFixed {
			opts.CurrentOverlayHash = pl.overlayHash
		}
	case steps.Stage:
		if pl.overlayHashFixed {
			opts.CurrentOverlayHash = pl.overlayHash
		}
	}
	return opts
}

func (pl *planner) dependencyStageNewer(p *parts.Part) bool {
	buildTime, err := pl.mgr.ModTime(p.Name, steps.Build)
	if err != nil {
		return false
	}
	for _, dep := range pl.set.Dependencies(p.Name) {
		stageTime, err := pl.mgr.ModTime(dep.Name, steps.Stage)
		if err == nil && stageTime.After(buildTime) {
			return true
		}
	}
	return false
}

func (pl *planner) outdatedOptionsFor(p *parts.Part, step steps.Step) state.OutdatedOptions {
	opts := state.OutdatedOptions{}
	switch step {
	case steps.Pull:
		opts.SourceNewer = pl.sourceNewer(p)
	case steps.Build:
		pullTime, err1 := pl.mgr.ModTime(p.Name, steps.Pull)
		buildTime, err2 := pl.mgr.ModTime(p.Name, steps.Build)
		opts.LowerStepNewer = err1 == nil && err2 == nil && pullTime.After(buildTime)
	}
	return opts
}

func (pl *planner) sourceNewer(p *parts.Part) bool {
	if p.Spec.Source == "" {
		return false
	}
	hnd, err := source.Factory(p.Spec.Source, p.Spec.SourceType)
	if err != nil {
		return false
	}
	outdated, err := hnd.CheckIfOutdated(pl.mgr.StatePath(p.Name, steps.Pull))
	if err != nil {
		return false
	}
	return outdated
}

// ensureOverlayConsistency walks the stack threading the layer-hash chain
// from the project's base hash, emitting an OVERLAY sub-plan for any
// part whose persisted hash no longer matches, up to (and, unless
// skipLast, including) topPart.
func (pl *planner) ensureOverlayConsistency(topPart, reason string, skipLast bool) (layerhash.Hash, error) {
	previous, err := pl.baseHash()
	if err != nil {
		return layerhash.Hash{}, err
	}

	for _, name := range pl.stackOrder {
		p, ok := pl.set.Get(name)
		if !ok {
			continue
		}
		h := layerhash.ForPart(p, previous)

		if skipLast && name == topPart {
			return h, nil
		}

		mismatched := true
		if hex, ok, err := pl.mgr.GetLayerHash(name); err != nil {
			return layerhash.Hash{}, err
		} else if ok {
			persisted, err := layerhash.FromHex(hex)
			if err != nil {
				return layerhash.Hash{}, err
			}
			mismatched = !persisted.Equal(h)
		}

		if mismatched {
			if err := pl.planFor(steps.Overlay, []string{name}, reason); err != nil {
				return layerhash.Hash{}, err
			}
		}

		if name == topPart {
			return h, nil
		}
		previous = h
	}
	return previous, nil
}

func (pl *planner) baseHash() (layerhash.Hash, error) {
	if pl.opts.BaseLayerHash == "" {
		return layerhash.Hash{}, nil
	}
	return layerhash.FromHex(pl.opts.BaseLayerHash)
}
