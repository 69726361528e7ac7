// Package steps defines the fixed five-stage part lifecycle and the
// ordering relation between stages.
package steps

import (
	"fmt"
	"strings"
)

// Step is one stage in a part's lifecycle.
type Step int

const (
	// Pull fetches sources, stage-packages, stage-snaps and overlay-packages.
	Pull Step = iota
	// Overlay installs overlay-packages and runs the overlay scriptlet.
	Overlay
	// Build compiles the part via its plugin or override-build scriptlet.
	Build
	// Stage migrates installed files into the project-wide stage directory.
	Stage
	// Prime migrates staged files into the project-wide prime directory.
	Prime
)

// All lists every step in lifecycle order.
var All = []Step{Pull, Overlay, Build, Stage, Prime}

func (s Step) String() string {
	switch s {
	case Pull:
		return "PULL"
	case Overlay:
		return "OVERLAY"
	case Build:
		return "BUILD"
	case Stage:
		return "STAGE"
	case Prime:
		return "PRIME"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Verb returns the lowercase verb used in sequencer reason strings, e.g.
// "required to build 'foo'".
func (s Step) Verb() string {
	switch s {
	case Pull:
		return "pull"
	case Overlay:
		return "overlay"
	case Build:
		return "build"
	case Stage:
		return "stage"
	case Prime:
		return "prime"
	default:
		return "process"
	}
}

// Parse converts a case-insensitive step name to a Step.
func Parse(name string) (Step, bool) {
	for _, s := range All {
		if strings.EqualFold(s.String(), name) {
			return s, true
		}
	}
	return 0, false
}

// PreviousSteps returns every step strictly lower than s, in lifecycle
// order.
func (s Step) PreviousSteps() []Step {
	out := make([]Step, 0, int(s))
	for _, step := range All {
		if step < s {
			out = append(out, step)
		}
	}
	return out
}

// NextSteps returns every step strictly higher than s, in lifecycle order.
func (s Step) NextSteps() []Step {
	var out []Step
	for _, step := range All {
		if step > s {
			out = append(out, step)
		}
	}
	return out
}

