package plugin

// nilPlugin does nothing: it has no build commands, so it installs nothing.
// Useful for parts whose only purpose is to contribute overlay data or
// pre-organized files.
type nilPlugin struct{}

func newNilPlugin(Info, map[string]interface{}) (Plugin, error) { return &nilPlugin{}, nil }

func (p *nilPlugin) BuildPackages() []string            { return nil }
func (p *nilPlugin) BuildSnaps() []string               { return nil }
func (p *nilPlugin) BuildEnvironment() map[string]string { return nil }
func (p *nilPlugin) BuildCommands() []string            { return nil }
func (p *nilPlugin) OutOfSourceBuild() bool             { return false }

// dumpPlugin copies the part's source tree verbatim into the install
// directory.
type dumpPlugin struct {
	installDir string
}

func newDumpPlugin(info Info, _ map[string]interface{}) (Plugin, error) {
	return &dumpPlugin{installDir: info.InstallDir}, nil
}

func (p *dumpPlugin) BuildPackages() []string             { return nil }
func (p *dumpPlugin) BuildSnaps() []string                { return nil }
func (p *dumpPlugin) BuildEnvironment() map[string]string { return nil }
func (p *dumpPlugin) BuildCommands() []string {
	return []string{"cp -a . " + p.installDir}
}
func (p *dumpPlugin) OutOfSourceBuild() bool { return false }
