package handler

import (
	"context"
	"os/exec"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// MachineManifest snapshots the host identity and the packages/snaps the
// package repository considers already installed, for inclusion in the
// BUILD step's recorded assets (spec.md §6, §9).
type MachineManifest struct {
	Uname             string   `yaml:"uname"`
	InstalledPackages []string `yaml:"installed-packages,omitempty"`
	InstalledSnaps    []string `yaml:"installed-snaps,omitempty"`
}

// BuildManifest gathers the manifest, never failing the build over it: a
// missing uname binary or package database just yields an empty field.
func (h *Handler) BuildManifest(ctx context.Context) MachineManifest {
	manifest := MachineManifest{Uname: uname(ctx)}

	if h.Packages != nil {
		if pkgs, err := h.Packages.GetInstalledPackages(); err == nil {
			sort.Strings(pkgs)
			manifest.InstalledPackages = pkgs
		}
	}
	if h.Snaps != nil {
		if snaps, err := h.Snaps.GetInstalledSnaps(); err == nil {
			sort.Strings(snaps)
			manifest.InstalledSnaps = snaps
		}
	}
	return manifest
}

// uname runs "uname -srvmo" and degrades to a UTF-8 replacement-rune
// substitution for any byte sequence the host locale can't decode,
// approximating the surrogate-escape fallback a Python implementation
// gets for free from its text I/O layer.
func uname(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "uname", "-srvmo").Output()
	if err != nil {
		return "unknown"
	}
	if !utf8.Valid(out) {
		logrus.Warn("handler: uname output is not valid UTF-8; undecodable bytes replaced")
		out = []byte(strings.ToValidUTF8(string(out), "�"))
	}
	return strings.TrimSpace(string(out))
}
