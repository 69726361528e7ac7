// Package plugin is the plugin registry external collaborator (spec.md
// §6): the Part Handler consumes plugins only through this narrow
// interface.
package plugin

import "fmt"

// Info is the subset of a part's identity a plugin needs to build its
// environment and commands.
type Info struct {
	PartName   string
	WorkDir    string // part/build
	InstallDir string // part/install
}

// Plugin knows how to build one part.
type Plugin interface {
	// BuildPackages returns the set of host packages the build needs.
	BuildPackages() []string
	// BuildSnaps returns the set of host snaps the build needs.
	BuildSnaps() []string
	// BuildEnvironment returns environment variables set for the build
	// commands.
	BuildEnvironment() map[string]string
	// BuildCommands returns the shell commands that build and install
	// the part, run with work dir Info.WorkDir.
	BuildCommands() []string
	// OutOfSourceBuild reports whether the plugin builds into a
	// directory separate from the source tree.
	OutOfSourceBuild() bool
}

// Factory constructs a Plugin given its typed properties (as decoded
// from the part's inline YAML properties) and the part's Info.
type Factory func(info Info, properties map[string]interface{}) (Plugin, error)

var registry = map[string]Factory{}

// Register adds a plugin factory under name, called at startup by each
// plugin's init().
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Build constructs the named plugin.
func Build(name string, info Info, properties map[string]interface{}) (Plugin, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("plugin: no plugin registered for %q", name)
	}
	return factory(info, properties)
}

func init() {
	Register("nil", newNilPlugin)
	Register("dump", newDumpPlugin)
}
