package coordinates

import "fmt"

// Broker assigns each subset in an ordered list a fixed offset into a flat
// []float64 state vector, and is the only thing in this package that knows
// how those offsets are laid out (spec §3 "CoordinateBroker").
//
// Grounded on the teacher's mission.go Mission.GetState/SetState, which
// hard-codes a fixed 7-slot layout (position, velocity, mass) selected by a
// Propagator enum switch; Broker generalizes that fixed switch into a
// runtime-configurable, order-preserving offset table so a State can carry
// an arbitrary subset list (attitude, drag coefficient, and so on) without
// a new hand-written packer for every combination.
type Broker struct {
	subsets []Subset
	offsets map[string]int
	size    int
}

// NewBroker builds a broker for the given ordered subsets. Subset names
// must be unique and every Dependencies() name must itself be present,
// matching spec §3's "dependencies must resolve within the same broker"
// invariant.
func NewBroker(subsets ...Subset) (*Broker, error) {
	b := &Broker{
		subsets: append([]Subset{}, subsets...),
		offsets: make(map[string]int, len(subsets)),
	}
	offset := 0
	for _, s := range subsets {
		if _, dup := b.offsets[s.Name()]; dup {
			return nil, fmt.Errorf("coordinates: duplicate subset %q in broker", s.Name())
		}
		b.offsets[s.Name()] = offset
		offset += s.Size()
	}
	b.size = offset
	for _, s := range subsets {
		for _, dep := range s.Dependencies() {
			if _, ok := b.offsets[dep]; !ok {
				return nil, fmt.Errorf("coordinates: subset %q depends on %q which is not in the broker", s.Name(), dep)
			}
		}
	}
	return b, nil
}

// Add appends a subset and returns its offset. Re-adding a subset already
// present is a no-op returning the existing offset; a different subset
// carrying an already-used name is rejected. The new subset's dependencies
// must already be resolvable.
func (b *Broker) Add(s Subset) (int, error) {
	if offset, ok := b.offsets[s.Name()]; ok {
		for _, existing := range b.subsets {
			if existing.Name() == s.Name() {
				if existing != s {
					return 0, fmt.Errorf("coordinates: a different subset named %q is already in the broker", s.Name())
				}
				return offset, nil
			}
		}
	}
	for _, dep := range s.Dependencies() {
		if _, ok := b.offsets[dep]; !ok {
			return 0, fmt.Errorf("coordinates: subset %q depends on %q which is not in the broker", s.Name(), dep)
		}
	}
	offset := b.size
	b.subsets = append(b.subsets, s)
	b.offsets[s.Name()] = offset
	b.size += s.Size()
	return offset, nil
}

// Size is the flat vector's total length.
func (b *Broker) Size() int { return b.size }

// Subsets returns the broker's subsets in packing order.
func (b *Broker) Subsets() []Subset { return append([]Subset{}, b.subsets...) }

// Offset returns the subset's starting index in the flat vector.
func (b *Broker) Offset(name string) (int, bool) {
	o, ok := b.offsets[name]
	return o, ok
}

// Has reports whether the named subset is present.
func (b *Broker) Has(name string) bool {
	_, ok := b.offsets[name]
	return ok
}

// Extract returns the slice of `vector` belonging to the named subset.
func (b *Broker) Extract(vector []float64, name string) ([]float64, error) {
	offset, ok := b.offsets[name]
	if !ok {
		return nil, fmt.Errorf("coordinates: broker has no subset %q", name)
	}
	for _, s := range b.subsets {
		if s.Name() == name {
			return vector[offset : offset+s.Size()], nil
		}
	}
	panic("coordinates: offsets/subsets out of sync")
}

// Default builds a flat vector by concatenating every subset's Default().
func (b *Broker) Default() []float64 {
	out := make([]float64, 0, b.size)
	for _, s := range b.subsets {
		out = append(out, s.Default()...)
	}
	return out
}

// Equals reports whether two brokers pack the identical ordered subset list,
// which is the precondition spec §3 requires before two State's flat
// vectors can be compared or arithmetically combined directly.
func (b *Broker) Equals(other *Broker) bool {
	if other == nil || len(b.subsets) != len(other.subsets) {
		return false
	}
	for i, s := range b.subsets {
		if other.subsets[i].Name() != s.Name() {
			return false
		}
	}
	return true
}
