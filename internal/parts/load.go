package parts

import (
	"fmt"
	"os"

	"github.com/partcraft/partcraft/internal/partserrors"
	"gopkg.in/yaml.v3"
)

// schema is the on-disk shape of a parts definition file. The top-level
// "parts" key is kept as a raw yaml.Node rather than a Go map so that
// declaration order survives decoding: map iteration order in Go is
// randomized, and declaration order is significant (it is the sequencer's
// tie-break and the default layer-stack order).
type schema struct {
	Parts yaml.Node `yaml:"parts"`
}

// LoadFile reads and parses a parts definition from a YAML file.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parts definition: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a parts definition from YAML bytes.
func LoadBytes(data []byte) (*Set, error) {
	var doc schema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse parts definition: %w", err)
	}
	if doc.Parts.Kind != yaml.MappingNode {
		return nil, partserrors.NewPartSpecificationError("", "top-level 'parts' must be a mapping")
	}

	list := make([]*Part, 0, len(doc.Parts.Content)/2)
	for i := 0; i+1 < len(doc.Parts.Content); i += 2 {
		nameNode, specNode := doc.Parts.Content[i], doc.Parts.Content[i+1]
		var spec Spec
		if err := specNode.Decode(&spec); err != nil {
			return nil, fmt.Errorf("parse part %q: %w", nameNode.Value, err)
		}
		p := &Part{Name: nameNode.Value, Spec: spec}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	set, err := NewSet(list)
	if err != nil {
		return nil, err
	}
	if _, err := set.SortedNames(); err != nil {
		return nil, err
	}
	return set, nil
}
