// Package actions defines the planner's output unit: a single tagged
// operation on a single part/step.
package actions

import (
	"fmt"

	"github.com/partcraft/partcraft/internal/steps"
)

// Type tags how an action should be carried out by the executor.
type Type int

const (
	// Run executes a step that has never completed.
	Run Type = iota
	// Rerun cleans a step (and everything after it) and runs it again.
	Rerun
	// Update refreshes a step in place without cleaning it first.
	Update
	// Reapply re-mounts an unchanged overlay layer because a lower layer
	// in the stack changed, without rerunning the overlay script.
	Reapply
	// Skip performs no work; the step is already up to date.
	Skip
)

func (t Type) String() string {
	switch t {
	case Run:
		return "RUN"
	case Rerun:
		return "RERUN"
	case Update:
		return "UPDATE"
	case Reapply:
		return "REAPPLY"
	case Skip:
		return "SKIP"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Action is one planned operation on one part's step.
type Action struct {
	PartName string
	Step     steps.Step
	Type     Type
	Reason   string
}

// New builds an action, defaulting to the RUN type.
func New(partName string, step steps.Step, opts ...Option) Action {
	a := Action{PartName: partName, Step: step, Type: Run}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// Option configures an Action built by New.
type Option func(*Action)

// WithType sets the action type.
func WithType(t Type) Option { return func(a *Action) { a.Type = t } }

// WithReason sets the human-readable reason.
func WithReason(reason string) Option { return func(a *Action) { a.Reason = reason } }

func (a Action) String() string {
	if a.Reason == "" {
		return fmt.Sprintf("%s:%s(%s)", a.PartName, a.Step, a.Type)
	}
	return fmt.Sprintf("%s:%s(%s) [%s]", a.PartName, a.Step, a.Type, a.Reason)
}

// Equal reports structural equality, matching spec.md's "Action ... Equality
// structural" requirement.
func (a Action) Equal(other Action) bool {
	return a.PartName == other.PartName && a.Step == other.Step &&
		a.Type == other.Type && a.Reason == other.Reason
}
