// Package state tracks per-(part,step) persisted records: what spec
// produced them, what they migrated, and whether they are still valid.
package state

import (
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/partcraft/partcraft/internal/steps"
)

// Record is the persisted state of one (part, step) pair. The source
// models each step as a distinct record type; here a single struct plays
// every step's role, with PropertiesOfInterest/Diff dispatching on Step to
// recover the "tagged variant" behavior without five near-identical types.
type Record struct {
	Step           steps.Step             `yaml:"-"`
	PartProperties map[string]interface{} `yaml:"part-properties"`
	ProjectOptions map[string]interface{} `yaml:"project-options"`
	Assets         map[string]interface{} `yaml:"assets,omitempty"`
	Files          []string               `yaml:"files,omitempty"`
	Directories    []string               `yaml:"directories,omitempty"`
	OverlayHash    string                 `yaml:"overlay-hash,omitempty"`
}

// New builds a Record for step, snapshotting partProperties and
// projectOptions as they stood when the step ran.
func New(step steps.Step, partProperties, projectOptions map[string]interface{}) *Record {
	return &Record{
		Step:           step,
		PartProperties: partProperties,
		ProjectOptions: projectOptions,
	}
}

// propertiesOfInterest lists, for each step, the PartProperties keys whose
// change makes that step dirty (spec.md §3).
var propertiesOfInterest = map[steps.Step][]string{
	steps.Pull:    {"source", "source-type", "override-pull"},
	steps.Overlay: {"overlay-packages", "overlay-files", "overlay-script"},
	steps.Build:   {"override-build", "build-packages", "stage-packages", "organize"},
	steps.Stage:   {"override-stage"},
	steps.Prime:   {"override-prime"},
}

// PropertiesOfInterest returns the property names compared for dirtiness
// at the given step.
func PropertiesOfInterest(step steps.Step) []string {
	return propertiesOfInterest[step]
}

// Diff compares current against the record's persisted PartProperties,
// restricted to the step's properties of interest, and returns the name
// of the first field that differs (in declared order), or "" if none do.
func (r *Record) Diff(current map[string]interface{}) string {
	for _, key := range propertiesOfInterest[r.Step] {
		if !reflect.DeepEqual(normalize(r.PartProperties[key]), normalize(current[key])) {
			return key
		}
	}
	return ""
}

// normalize gives v the shape it takes after a YAML round trip, so a value
// decoded from a state file and a freshly built one compare equal when they
// hold the same data.
func normalize(v interface{}) interface{} {
	data, err := yaml.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// DirtyReason formats the human-readable reason string used in action
// reasons, e.g. "'source' property changed".
func DirtyReason(field string) string {
	return fmt.Sprintf("'%s' property changed", field)
}
