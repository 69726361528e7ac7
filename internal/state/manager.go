package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/steps"
	"gopkg.in/yaml.v3"
)

// Manager holds, per part, the currently-loaded Record for each step (or
// absence thereof), and mediates all reads/writes of the on-disk state
// files under "<part>/state/<step>".
type Manager struct {
	mu      sync.Mutex
	loaded  map[string]map[steps.Step]*Record
	workDir func(part string) parts.Dirs
}

// NewManager builds a Manager whose per-part directories are computed by
// dirsFor (typically parts.PartDirs bound to the project work root).
func NewManager(dirsFor func(part string) parts.Dirs) *Manager {
	return &Manager{
		loaded:  make(map[string]map[steps.Step]*Record),
		workDir: dirsFor,
	}
}

func statePath(d parts.Dirs, step steps.Step) string {
	return filepath.Join(d.State, step.Verb())
}

// StatePath returns the on-disk path of (part, step)'s state file, used
// by the sequencer to compare mtimes against a source tree directly.
func (m *Manager) StatePath(part string, step steps.Step) string {
	return statePath(m.workDir(part), step)
}

// HasStepRun reports whether a state record exists for (part, step),
// either already loaded in memory or present on disk.
func (m *Manager) HasStepRun(part string, step steps.Step) bool {
	m.mu.Lock()
	if _, ok := m.loaded[part][step]; ok {
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	_, err := os.Stat(statePath(m.workDir(part), step))
	return err == nil
}

// Load reads the state record for (part, step) from disk, caching it.
// It returns (nil, false, nil) if no record exists.
func (m *Manager) Load(part string, step steps.Step) (*Record, bool, error) {
	m.mu.Lock()
	if rec, ok := m.loaded[part][step]; ok {
		m.mu.Unlock()
		return rec, true, nil
	}
	m.mu.Unlock()

	data, err := os.ReadFile(statePath(m.workDir(part), step))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load state for %s %s: %w", part, step, err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("parse state for %s %s: %w", part, step, err)
	}
	rec.Step = step
	m.Set(part, step, &rec)
	return &rec, true, nil
}

// Set replaces the in-memory state record; the disk write happens only
// when Save is called (the executor commits an action by calling Save
// after its step handler returns successfully).
func (m *Manager) Set(part string, step steps.Step, rec *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded[part] == nil {
		m.loaded[part] = make(map[steps.Step]*Record)
	}
	m.loaded[part][step] = rec
}

// Save persists rec to disk at "<part>/state/<step>" and updates the
// in-memory cache.
func (m *Manager) Save(part string, step steps.Step, rec *Record) error {
	dirs := m.workDir(part)
	if err := os.MkdirAll(dirs.State, 0o755); err != nil {
		return fmt.Errorf("save state for %s %s: %w", part, step, err)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal state for %s %s: %w", part, step, err)
	}
	if err := os.WriteFile(statePath(dirs, step), data, 0o644); err != nil {
		return fmt.Errorf("save state for %s %s: %w", part, step, err)
	}
	m.Set(part, step, rec)
	return nil
}

// Touch updates the state file's modification timestamp without rewriting
// its content, backing both mark_step_updated and update_state_timestamp.
func (m *Manager) Touch(part string, step steps.Step) error {
	now := time.Now()
	path := statePath(m.workDir(part), step)
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("touch state for %s %s: %w", part, step, err)
	}
	return nil
}

// ModTime returns the state file's modification time.
func (m *Manager) ModTime(part string, step steps.Step) (time.Time, error) {
	info, err := os.Stat(statePath(m.workDir(part), step))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// RemoveState deletes the persisted state record for (part, step) and
// drops it from the in-memory cache. It is not an error for the file to
// be absent already.
func (m *Manager) RemoveState(part string, step steps.Step) error {
	m.mu.Lock()
	delete(m.loaded[part], step)
	m.mu.Unlock()

	if err := os.Remove(statePath(m.workDir(part), step)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state for %s %s: %w", part, step, err)
	}
	return nil
}

// CleanFromStep removes the state for step and every step after it for
// this part (RERUN and clean_part both do this).
func (m *Manager) CleanFromStep(part string, step steps.Step) error {
	for _, s := range append([]steps.Step{step}, step.NextSteps()...) {
		if err := m.RemoveState(part, s); err != nil {
			return err
		}
	}
	return nil
}
