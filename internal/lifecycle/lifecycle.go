// Package lifecycle wires the sequencer and the part handler into the
// three operations a caller actually invokes: plan a target step, execute
// it, or clean previously-run steps (spec.md §2's plan/execute/clean
// split).
package lifecycle

import (
	"context"
	"fmt"

	"github.com/partcraft/partcraft/internal/actions"
	"github.com/partcraft/partcraft/internal/config"
	"github.com/partcraft/partcraft/internal/handler"
	"github.com/partcraft/partcraft/internal/layerhash"
	"github.com/partcraft/partcraft/internal/logging"
	"github.com/partcraft/partcraft/internal/overlay"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/pkgrepo"
	"github.com/partcraft/partcraft/internal/sequencer"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
)

// Manager owns one project's part set and mediates every plan/execute/
// clean call against it, matching the teacher's internal/daemon.Manager
// shape: a single long-lived object fronting a state manager and a
// dispatcher, generalized here from "VM instances" to "parts."
type Manager struct {
	Options config.Options
	Set     *parts.Set
	State   *state.Manager
	Handler *handler.Handler

	stackOrder []string
}

// New builds a Manager for set under opts, wiring a fresh state.Manager,
// overlay.Manager and the given package/snap repositories into a
// handler.Handler.
func New(opts config.Options, set *parts.Set, pkgs pkgrepo.Repository, snaps pkgrepo.SnapRepository) (*Manager, error) {
	stackOrder, err := set.SortedNames()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}

	mgr := state.NewManager(func(part string) parts.Dirs { return parts.PartDirs(opts.WorkDir, part) })
	ov := overlay.NewManager(parts.NewProjectDirs(opts.WorkDir).Overlay + "/scratch")
	hnd := handler.New(opts, set, stackOrder, mgr, ov, pkgs, snaps)

	return &Manager{
		Options:    opts,
		Set:        set,
		State:      mgr,
		Handler:    hnd,
		stackOrder: stackOrder,
	}, nil
}

// Plan returns the ordered action list for targetStep restricted to
// partNames, without running anything.
func (m *Manager) Plan(targetStep steps.Step, partNames []string) ([]actions.Action, error) {
	return sequencer.Plan(m.Set, m.State, m.Options, targetStep, partNames)
}

// Execute plans targetStep for partNames and runs every emitted action in
// order, fixing the plan-wide overlay hash on the handler before any
// BUILD/STAGE action runs (spec.md §4.3's "store its return value as the
// plan's overlay hash").
func (m *Manager) Execute(ctx context.Context, targetStep steps.Step, partNames []string) ([]actions.Action, error) {
	acts, err := m.Plan(targetStep, partNames)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: plan: %w", err)
	}

	hash, err := m.overlayHash()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: compute overlay hash: %w", err)
	}
	m.Handler.SetPlanOverlayHash(hash)

	for _, a := range acts {
		logging.ForAction(a.PartName, a.Step, a.Type.String()).Debug("lifecycle: executing action")
		if err := m.Handler.RunAction(ctx, a); err != nil {
			return acts, fmt.Errorf("lifecycle: %s %s: %w", a.PartName, a.Step.String(), err)
		}
	}
	return acts, nil
}

// Clean removes a part's state and artifacts for step and every step
// after it. If partNames is empty, every part is cleaned.
func (m *Manager) Clean(step steps.Step, partNames []string) error {
	names := partNames
	if len(names) == 0 {
		names = m.stackOrder
	}
	for _, name := range names {
		for _, s := range append([]steps.Step{step}, step.NextSteps()...) {
			if err := m.Handler.CleanStep(name, s); err != nil {
				return fmt.Errorf("lifecycle: clean %s %s: %w", name, s.String(), err)
			}
		}
	}
	return nil
}

// overlayHash chains layerhash.ForPart over the full stack from the
// project's base hash, the same pure computation ensure_overlay_consistency
// performs internally, but without the sequencer's side-effecting
// mismatch re-planning. Execute calls it after planning and before any
// action runs; the chain depends only on the parts' overlay parameters,
// not on what has been executed, so it is the hash this plan's BUILD and
// STAGE actions record (spec.md §4.2).
func (m *Manager) overlayHash() (string, error) {
	previous := layerhash.Hash{}
	if m.Options.BaseLayerHash != "" {
		h, err := layerhash.FromHex(m.Options.BaseLayerHash)
		if err != nil {
			return "", err
		}
		previous = h
	}
	for _, name := range m.stackOrder {
		p, ok := m.Set.Get(name)
		if !ok {
			continue
		}
		previous = layerhash.ForPart(p, previous)
	}
	return previous.Hex(), nil
}
