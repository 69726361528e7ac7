package handler

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/partcraft/partcraft/internal/migrate"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/plugin"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
)

// runBuild fetches build-packages and unpacks them into the build
// directory, runs either the part's override-build scriptlet or its
// plugin's build commands, then applies organize with overwrite=False and
// records the machine manifest in the BUILD state's assets (spec.md §4.3,
// §4.4, §6). Build-snaps are not installed.
func (h *Handler) runBuild(ctx context.Context, p *parts.Part) error {
	dirs := h.dirs(p.Name)
	if err := os.MkdirAll(dirs.Build, 0o755); err != nil {
		return fmt.Errorf("handler: build %s: %w", p.Name, err)
	}
	if err := os.MkdirAll(dirs.Install, 0o755); err != nil {
		return fmt.Errorf("handler: build %s: %w", p.Name, err)
	}

	if len(p.Spec.BuildPackages) > 0 {
		if _, err := h.Packages.FetchStagePackages(ctx, dirs.Packages, p.Spec.BuildPackages, h.Options.TargetArch, h.Options.Base, dirs.Packages); err != nil {
			return fmt.Errorf("handler: build %s: fetch build packages: %w", p.Name, err)
		}
		if err := h.Packages.UnpackStagePackages(dirs.Packages, dirs.Build); err != nil {
			return fmt.Errorf("handler: build %s: unpack build packages: %w", p.Name, err)
		}
	}

	if err := populateBuildDir(dirs.Src, dirs.Build); err != nil {
		return fmt.Errorf("handler: build %s: populate build dir: %w", p.Name, err)
	}

	if err := h.runBuildCommands(ctx, p, dirs); err != nil {
		return err
	}

	var organized []string
	if len(p.Spec.Organize) > 0 {
		var err error
		organized, err = migrate.OrganizeFiles(dirs.Install, p.Spec.Organize, false, nil)
		if err != nil {
			return fmt.Errorf("handler: build %s: organize: %w", p.Name, err)
		}
	}

	rec := state.New(steps.Build, p.Properties(), h.Options.ToMap())
	rec.OverlayHash = h.planOverlayHash
	rec.Assets = map[string]interface{}{"machine-manifest": h.BuildManifest(ctx)}
	if organized != nil {
		rec.Assets["organize-files"] = organized
	}
	return h.State.Save(p.Name, steps.Build, rec)
}

func (h *Handler) runBuildCommands(ctx context.Context, p *parts.Part, dirs parts.Dirs) error {
	if script := p.Spec.OverrideBuild; script != "" {
		return h.runScript(ctx, script, dirs.Build, p.Name)
	}

	pl, err := plugin.Build(p.Spec.Plugin, plugin.Info{PartName: p.Name, WorkDir: dirs.Build, InstallDir: dirs.Install}, p.Spec.PluginProperties)
	if err != nil {
		return fmt.Errorf("handler: build %s: %w", p.Name, err)
	}

	env := os.Environ()
	for k, v := range pl.BuildEnvironment() {
		env = append(env, k+"="+v)
	}
	env = append(env, "CRAFT_PART_INSTALL="+dirs.Install, "CRAFT_PART_BUILD="+dirs.Build, "CRAFT_PART_NAME="+p.Name)

	for _, command := range pl.BuildCommands() {
		cmd := exec.CommandContext(ctx, "bash", "-c", command)
		cmd.Dir = dirs.Build
		cmd.Env = env
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("handler: build %s: build command %q: %w: %s", p.Name, command, err, out)
		}
	}
	return nil
}

// populateBuildDir copies the part's pulled source tree into its build
// directory before build commands run, the same source-into-build-dir
// staging every plugin (out-of-source or not) expects to find in place.
// A part with no declared source (srcDir never populated by PULL) is a
// no-op.
func populateBuildDir(srcDir, buildDir string) error {
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(buildDir, rel)

		switch {
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		default:
			return copyBuildFile(path, target, info.Mode().Perm())
		}
	})
}

func copyBuildFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func (h *Handler) runScript(ctx context.Context, script, workDir, partName string) error {
	cmd := exec.CommandContext(ctx, "bash", "-c", script)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "CRAFT_PART_NAME="+partName)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("handler: %s: scriptlet: %w: %s", partName, err, out)
	}
	return nil
}

// updateBuild re-runs the build in place without cleaning prior state,
// used when only the source tree (not a build-affecting property) changed
// underneath an already-built part. Organize re-applies with
// overwrite=True, scoped to the destination set organize produced last
// time, so it can't clobber install content outside its own prior output
// (spec.md §9 redesign decision: tightened organize-overwrite semantics).
func (h *Handler) updateBuild(ctx context.Context, p *parts.Part) error {
	dirs := h.dirs(p.Name)
	if err := populateBuildDir(dirs.Src, dirs.Build); err != nil {
		return fmt.Errorf("handler: update-build %s: populate build dir: %w", p.Name, err)
	}
	if err := h.runBuildCommands(ctx, p, dirs); err != nil {
		return err
	}

	rec, ok, err := h.State.Load(p.Name, steps.Build)
	if err != nil {
		return err
	}
	if !ok {
		rec = state.New(steps.Build, p.Properties(), h.Options.ToMap())
	}

	var organized []string
	if len(p.Spec.Organize) > 0 {
		organized, err = migrate.OrganizeFiles(dirs.Install, p.Spec.Organize, true, organizeOverwriteSet(rec))
		if err != nil {
			return fmt.Errorf("handler: update-build %s: organize: %w", p.Name, err)
		}
	}

	rec.PartProperties = p.Properties()
	rec.OverlayHash = h.planOverlayHash
	if organized != nil {
		if rec.Assets == nil {
			rec.Assets = map[string]interface{}{}
		}
		rec.Assets["organize-files"] = organized
	}
	return h.State.Save(p.Name, steps.Build, rec)
}

// organizeOverwriteSet recovers the destination set a prior BUILD's
// organize produced, from either an in-process Record (still []string)
// or one just decoded from YAML (assets decode as []interface{}).
func organizeOverwriteSet(rec *state.Record) map[string]bool {
	allowed := make(map[string]bool)
	if rec == nil || rec.Assets == nil {
		return allowed
	}
	switch prior := rec.Assets["organize-files"].(type) {
	case []string:
		for _, p := range prior {
			allowed[p] = true
		}
	case []interface{}:
		for _, v := range prior {
			if s, ok := v.(string); ok {
				allowed[s] = true
			}
		}
	}
	return allowed
}
