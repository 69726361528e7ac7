// Package layerhash computes and persists the chained digest that
// identifies a part's position in the overlay stack.
package layerhash

import (
	"crypto/sha1" //nolint:gosec // content-identification digest, not a security boundary
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/partcraft/partcraft/internal/parts"
)

// Hash is a part's overlay-stack identification value.
type Hash struct {
	bytes []byte
}

// FromHex parses a persisted hex string into a Hash.
func FromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("parse layer hash: %w", err)
	}
	return Hash{bytes: b}, nil
}

// Bytes returns the raw digest.
func (h Hash) Bytes() []byte { return h.bytes }

// Hex returns the digest as a lowercase hex string.
func (h Hash) Hex() string { return hex.EncodeToString(h.bytes) }

// Equal reports whether two hashes hold the same digest. Two zero-value
// Hashes (the empty base the chain starts from) are equal.
func (h Hash) Equal(other Hash) bool {
	if len(h.bytes) != len(other.bytes) {
		return false
	}
	for i := range h.bytes {
		if h.bytes[i] != other.bytes[i] {
			return false
		}
	}
	return true
}

// ForPart computes the layer hash of p given the hash of the previous
// layer in the stack (the zero Hash for the first part, or a caller
// supplied base hash): sha1(sha1(sha1(previous ∥ sorted_overlay_packages)
// ∥ ordered_overlay_files) ∥ overlay_script).
func ForPart(p *parts.Part, previous Hash) Hash {
	h := sha1.New() //nolint:gosec
	h.Write(previous.bytes)
	for _, pkg := range sortedOverlayPackages(p) {
		h.Write([]byte(pkg))
	}
	digest := h.Sum(nil)

	h = sha1.New() //nolint:gosec
	h.Write(digest)
	for _, f := range p.Spec.OverlayFiles {
		h.Write([]byte(f))
	}
	digest = h.Sum(nil)

	h = sha1.New() //nolint:gosec
	h.Write(digest)
	if p.Spec.OverlayScript != "" {
		h.Write([]byte(p.Spec.OverlayScript))
	}
	return Hash{bytes: h.Sum(nil)}
}

func sortedOverlayPackages(p *parts.Part) []string {
	out := append([]string(nil), p.Spec.OverlayPackages...)
	sort.Strings(out)
	return out
}

// Load reads the persisted layer hash for part dirs, or returns
// (Hash{}, false, nil) if no hash has ever been saved.
func Load(d parts.Dirs) (Hash, bool, error) {
	data, err := os.ReadFile(d.LayerHashFile())
	if err != nil {
		if os.IsNotExist(err) {
			return Hash{}, false, nil
		}
		return Hash{}, false, fmt.Errorf("load layer hash: %w", err)
	}
	h, err := FromHex(string(data))
	if err != nil {
		return Hash{}, false, err
	}
	return h, true, nil
}

// Save persists h to the part's state directory, creating it if needed.
func Save(d parts.Dirs, h Hash) error {
	if err := os.MkdirAll(d.State, 0o755); err != nil {
		return fmt.Errorf("save layer hash: %w", err)
	}
	if err := os.WriteFile(d.LayerHashFile(), []byte(h.Hex()), 0o644); err != nil {
		return fmt.Errorf("save layer hash: %w", err)
	}
	return nil
}
