package parts

import "github.com/partcraft/partcraft/internal/partserrors"

// Set is an ordered collection of parts, indexed by name, as declared in a
// single parts definition.
type Set struct {
	byName map[string]*Part
	order  []string
}

// NewSet builds a Set from a slice of parts, preserving declaration order.
// It returns a PartSpecificationError if two parts share a name, and an
// InvalidPartName error if an `after` entry names an unknown part.
func NewSet(list []*Part) (*Set, error) {
	s := &Set{byName: make(map[string]*Part, len(list)), order: make([]string, 0, len(list))}
	for _, p := range list {
		if _, dup := s.byName[p.Name]; dup {
			return nil, partserrors.NewPartSpecificationError(p.Name, "duplicate part name")
		}
		s.byName[p.Name] = p
		s.order = append(s.order, p.Name)
	}
	for _, p := range list {
		for _, dep := range p.Spec.After {
			if _, ok := s.byName[dep]; !ok {
				return nil, partserrors.NewInvalidPartName(dep)
			}
		}
	}
	return s, nil
}

// Get returns the part named name, or (nil, false) if it is not defined.
func (s *Set) Get(name string) (*Part, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Names returns every part name in declaration order.
func (s *Set) Names() []string {
	out := append([]string(nil), s.order...)
	return out
}

// All returns every part in declaration order.
func (s *Set) All() []*Part {
	out := make([]*Part, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// Dependencies returns the parts directly named in name's `after` list, in
// declaration order. It does not include transitive dependencies.
func (s *Set) Dependencies(name string) []*Part {
	p, ok := s.byName[name]
	if !ok {
		return nil
	}
	out := make([]*Part, 0, len(p.Spec.After))
	for _, dep := range p.Spec.After {
		if d, ok := s.byName[dep]; ok {
			out = append(out, d)
		}
	}
	return out
}

// SortedNames returns every part name ordered so that a part always
// follows everything it depends on (directly or transitively) via
// `after`, breaking ties by declaration order. It detects cycles.
func (s *Set) SortedNames() ([]string, error) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(s.order))
	out := make([]string, 0, len(s.order))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			cycle := append(append([]string(nil), stack...), name)
			return partserrors.NewPartDependencyCycle(cycle)
		}
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range s.byName[name].Spec.After {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		out = append(out, name)
		return nil
	}

	for _, name := range s.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// HasOverlayBelowOrAt reports whether part name, or any part ordered at or
// before it in stackOrder, declares overlay parameters. This is the
// "sees_overlay" visibility predicate the sequencer uses to decide whether
// a part's BUILD depends on the plan's overlay hash (spec.md §4.4).
func (s *Set) HasOverlayBelowOrAt(stackOrder []string, name string) bool {
	for _, n := range stackOrder {
		if p, ok := s.byName[n]; ok && p.HasOverlay() {
			return true
		}
		if n == name {
			return false
		}
	}
	return false
}
