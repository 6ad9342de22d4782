package coordinates

import (
	"fmt"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
)

// StateBuilder pins a broker and frame and repeatedly stamps out States
// from per-subset values, so callers assemble states by name instead of by
// manually computing offsets (spec §3 "StateBuilder").
//
// Grounded on the teacher's NewOrbitFromRV/NewOrbitFromOE pair in orbit.go,
// which build the same Orbit type from two different input shapes;
// StateBuilder generalizes that pattern to an arbitrary subset list via
// Expand, while Reduce is its inverse (new in this module, needed because a
// broker can now carry more subsets than a caller wants to populate at
// once, e.g. composing a Mass default onto a bare 6-vector orbit).
type StateBuilder struct {
	broker *Broker
	frame  frame.Frame
}

// NewStateBuilder fixes the broker and frame a builder will stamp States in.
func NewStateBuilder(broker *Broker, f frame.Frame) *StateBuilder {
	return &StateBuilder{broker: broker, frame: f}
}

func (b *StateBuilder) Broker() *Broker   { return b.broker }
func (b *StateBuilder) Frame() frame.Frame { return b.frame }

// Build assembles a State at the given instant from a name->value map,
// filling any subset missing from `values` with its Default(). Returns an
// error if a supplied value's length disagrees with its subset's Size().
func (b *StateBuilder) Build(instant time.Time, values map[string][]float64) (*State, error) {
	vector := make([]float64, 0, b.broker.Size())
	for _, subset := range b.broker.subsets {
		v, ok := values[subset.Name()]
		if !ok {
			v = subset.Default()
		}
		if len(v) != subset.Size() {
			return nil, fmt.Errorf("coordinates: value for subset %q has length %d, want %d", subset.Name(), len(v), subset.Size())
		}
		vector = append(vector, v...)
	}
	return NewState(instant, b.frame, b.broker, vector)
}

// Expand re-broadcasts a State built under a smaller broker into this
// builder's (larger) broker, filling the new subsets with their defaults.
// Every subset of the source state's broker must also be present here.
func (b *StateBuilder) Expand(s *State) (*State, error) {
	values := make(map[string][]float64, len(s.broker.subsets))
	for _, subset := range s.broker.subsets {
		v, err := s.Extract(subset.Name())
		if err != nil {
			return nil, err
		}
		if !b.broker.Has(subset.Name()) {
			return nil, fmt.Errorf("coordinates: target broker is missing subset %q present on source state", subset.Name())
		}
		values[subset.Name()] = v
	}
	return b.Build(s.instant, values)
}

// Reduce extracts only this builder's subsets out of a State whose broker
// is a superset, dropping the rest.
func (b *StateBuilder) Reduce(s *State) (*State, error) {
	values := make(map[string][]float64, len(b.broker.subsets))
	for _, subset := range b.broker.subsets {
		v, err := s.Extract(subset.Name())
		if err != nil {
			return nil, fmt.Errorf("coordinates: source state is missing subset %q required by this builder: %w", subset.Name(), err)
		}
		values[subset.Name()] = v
	}
	return b.Build(s.instant, values)
}
