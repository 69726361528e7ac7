package state

import (
	"github.com/partcraft/partcraft/internal/layerhash"
)

// GetLayerHash returns the persisted hex layer hash for part, or
// ("", false, nil) if none has been saved.
func (m *Manager) GetLayerHash(part string) (string, bool, error) {
	h, ok, err := layerhash.Load(m.workDir(part))
	if err != nil || !ok {
		return "", ok, err
	}
	return h.Hex(), true, nil
}

// SaveLayerHash persists h for part.
func (m *Manager) SaveLayerHash(part string, h layerhash.Hash) error {
	return layerhash.Save(m.workDir(part), h)
}
