// Package parts models the declarative unit of build work: a named part
// with a plugin, inputs, and optional scriptlet overrides, plus the
// per-part and project-wide directories derived from a work root.
package parts

import (
	"fmt"

	"github.com/partcraft/partcraft/internal/partserrors"
)

// OrganizeEntry is one ordered source-glob -> destination-path mapping.
// Organize must preserve declaration order, so it cannot be a plain map.
type OrganizeEntry struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// Spec is the immutable declarative definition of a part, as loaded from
// the parts YAML schema (spec.md §6).
type Spec struct {
	Source           string                 `yaml:"source,omitempty"`
	SourceType       string                 `yaml:"source-type,omitempty"`
	BuildPackages    []string               `yaml:"build-packages,omitempty"`
	BuildSnaps       []string               `yaml:"build-snaps,omitempty"`
	StagePackages    []string               `yaml:"stage-packages,omitempty"`
	StageSnaps       []string               `yaml:"stage-snaps,omitempty"`
	OverlayPackages  []string               `yaml:"overlay-packages,omitempty"`
	OverlayFiles     []string               `yaml:"overlay-files,omitempty"`
	OverlayScript    string                 `yaml:"overlay-script,omitempty"`
	OverridePull     string                 `yaml:"override-pull,omitempty"`
	OverrideBuild    string                 `yaml:"override-build,omitempty"`
	OverrideStage    string                 `yaml:"override-stage,omitempty"`
	OverridePrime    string                 `yaml:"override-prime,omitempty"`
	Organize         []OrganizeEntry        `yaml:"organize,omitempty"`
	After            []string               `yaml:"after,omitempty"`
	Plugin           string                 `yaml:"plugin"`
	PluginProperties map[string]interface{} `yaml:",inline"`
}

// Part is one named unit of build work plus its runtime layer hash.
type Part struct {
	Name string
	Spec Spec

	// LayerHash is the part's current overlay-stack identification value,
	// recomputed during planning (spec.md §3 "Runtime attribute").
	LayerHash []byte
}

// Validate checks declarative-spec invariants that don't depend on the
// rest of the project (cross-part cycle detection happens in Set.SortedNames).
func (p *Part) Validate() error {
	if p.Name == "" {
		return partserrors.NewPartSpecificationError("", "part name must not be empty")
	}
	if p.Spec.Plugin == "" {
		return partserrors.NewPartSpecificationError(p.Name, "plugin is required")
	}
	for _, entry := range p.Spec.OverlayFiles {
		if entry == "" || entry == "-" {
			return partserrors.NewPartSpecificationError(
				p.Name, fmt.Sprintf("overlay-files entry %q is not a valid glob", entry),
			)
		}
	}
	return nil
}

// Properties snapshots the declarative spec fields the state manager
// compares against persisted state to detect dirtiness. Keys match the
// YAML field names so dirty reasons read the same as the schema (e.g.
// "'source' property changed").
func (p *Part) Properties() map[string]interface{} {
	return map[string]interface{}{
		"source":         p.Spec.Source,
		"source-type":    p.Spec.SourceType,
		"build-packages": p.Spec.BuildPackages,
		"build-snaps":    p.Spec.BuildSnaps,
		"stage-packages": p.Spec.StagePackages,
		"stage-snaps":    p.Spec.StageSnaps,
		"overlay-packages": p.Spec.OverlayPackages,
		"overlay-files":     p.Spec.OverlayFiles,
		"overlay-script":    p.Spec.OverlayScript,
		"override-pull":     p.Spec.OverridePull,
		"override-build":    p.Spec.OverrideBuild,
		"override-stage":    p.Spec.OverrideStage,
		"override-prime":    p.Spec.OverridePrime,
		"organize":          p.Spec.Organize,
		"after":             p.Spec.After,
		"plugin":            p.Spec.Plugin,
	}
}

// HasOverlay reports whether the part declares any overlay parameters of
// its own.
func (p *Part) HasOverlay() bool {
	return len(p.Spec.OverlayPackages) > 0 || len(p.Spec.OverlayFiles) > 0 || p.Spec.OverlayScript != ""
}

// GetScriptlet returns the override scriptlet text for the given step, or
// the empty string if none is declared.
func (p *Part) GetScriptlet(s interface{ String() string }) string {
	switch s.String() {
	case "PULL":
		return p.Spec.OverridePull
	case "BUILD":
		return p.Spec.OverrideBuild
	case "STAGE":
		return p.Spec.OverrideStage
	case "PRIME":
		return p.Spec.OverridePrime
	default:
		return ""
	}
}

