// Package callbacks holds the process-wide pre/post-step observer lists
// (spec.md §9): populated at startup, invoked synchronously around every
// step execution, failures swallowed and logged rather than propagated.
package callbacks

import (
	"fmt"

	"github.com/partcraft/partcraft/internal/actions"
	"github.com/partcraft/partcraft/internal/logging"
)

// StepCallback observes an action immediately before or after its step
// handler runs.
type StepCallback func(action actions.Action) error

var (
	preStep  []StepCallback
	postStep []StepCallback
)

// RegisterPreStep adds an observer invoked before a step runs.
func RegisterPreStep(cb StepCallback) { preStep = append(preStep, cb) }

// RegisterPostStep adds an observer invoked after a step runs
// successfully.
func RegisterPostStep(cb StepCallback) { postStep = append(postStep, cb) }

// RunPreStep invokes every registered pre-step observer. An observer
// failure is logged and swallowed so it cannot corrupt the action's own
// execution or state.
func RunPreStep(action actions.Action) {
	run(preStep, action)
}

// RunPostStep invokes every registered post-step observer.
func RunPostStep(action actions.Action) {
	run(postStep, action)
}

func run(callbacks []StepCallback, action actions.Action) {
	for _, cb := range callbacks {
		if err := invoke(cb, action); err != nil {
			logging.ForStep(action.PartName, action.Step).WithError(err).Warn("callbacks: observer failed")
		}
	}
}

// invoke calls cb, turning a panic into an error so it is logged and
// swallowed like any other observer failure.
func invoke(cb StepCallback, action actions.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return cb(action)
}

// Reset clears every registered callback; exposed for tests that need a
// clean process-wide list between cases.
func Reset() {
	preStep = nil
	postStep = nil
}
