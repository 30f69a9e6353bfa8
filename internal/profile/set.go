package profile

// Set is an ordered, read-only collection of profiles with unique names.
type Set struct {
	weapons []*Weapon
	byName  map[string]int
}

// NewSet builds a Set, keeping the first occurrence of each name.
func NewSet(weapons ...*Weapon) *Set {
	s := &Set{byName: make(map[string]int, len(weapons))}
	for _, w := range weapons {
		if w == nil {
			continue
		}
		if _, dup := s.byName[w.Name]; dup {
			continue
		}
		s.byName[w.Name] = len(s.weapons)
		s.weapons = append(s.weapons, w)
	}
	return s
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.weapons)
}

// At returns the profile at index i, or nil when out of range.
func (s *Set) At(i int) *Weapon {
	if s == nil || i < 0 || i >= len(s.weapons) {
		return nil
	}
	return s.weapons[i]
}

func (s *Set) Lookup(name string) (*Weapon, bool) {
	i := s.Index(name)
	if i < 0 {
		return nil, false
	}
	return s.weapons[i], true
}

// Index returns the position of name, or -1.
func (s *Set) Index(name string) int {
	if s == nil {
		return -1
	}
	i, ok := s.byName[name]
	if !ok {
		return -1
	}
	return i
}

func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.weapons))
	for i, w := range s.weapons {
		names[i] = w.Name
	}
	return names
}

// All returns a copy of the ordered profile list.
func (s *Set) All() []*Weapon {
	if s == nil {
		return nil
	}
	out := make([]*Weapon, len(s.weapons))
	copy(out, s.weapons)
	return out
}

// Step returns the profile delta positions away from current, clamped to the
// ends of the set. An unknown current name steps from the first entry.
func (s *Set) Step(current string, delta int) *Weapon {
	if s.Len() == 0 {
		return nil
	}
	i := s.Index(current)
	if i < 0 {
		i = 0
	}
	i += delta
	if i < 0 {
		i = 0
	}
	if i >= len(s.weapons) {
		i = len(s.weapons) - 1
	}
	return s.weapons[i]
}

// Resolve keeps current when it is still present and otherwise falls back to
// the first profile. It returns nil for an empty set.
func (s *Set) Resolve(current string) *Weapon {
	if w, ok := s.Lookup(current); ok {
		return w
	}
	return s.At(0)
}
