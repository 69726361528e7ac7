package overlay

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// CleanStale removes scratch directories left behind by a crashed or
// killed run, so the scratch root doesn't grow unbounded across restarts.
func (m *Manager) CleanStale(maxAge time.Duration) {
	entries, err := os.ReadDir(m.scratchRoot)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.scratchRoot, e.Name())
		logrus.WithField("scratch_dir", path).Info("overlay: removing stale scratch directory")
		os.RemoveAll(path)
	}
}
