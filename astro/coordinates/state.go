package coordinates

import (
	"fmt"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
)

// State is an instant, a frame, a broker, and the flat coordinate vector the
// broker knows how to slice (spec §3 "State"). It is the unit every
// dynamics term, integrator step, and segment boundary passes around.
//
// Grounded on the teacher's orbit.go Orbit (rVec, vVec []float64, Origin
// CelestialObject) generalized from a fixed position/velocity pair to an
// arbitrary broker-defined layout, so the same State type carries a bare
// 6-vector orbit or a 14-vector attitude-and-drag-augmented one.
type State struct {
	instant time.Time
	frame   frame.Frame
	broker  *Broker
	vector  []float64
}

// NewState validates the vector length against the broker before
// constructing a State, rather than trusting the caller (spec §4.2's
// "rejects vectors whose length disagrees with its broker").
func NewState(instant time.Time, f frame.Frame, broker *Broker, vector []float64) (*State, error) {
	if broker == nil {
		return nil, fmt.Errorf("coordinates: state requires a non-nil broker")
	}
	if !f.IsDefined() {
		return nil, fmt.Errorf("coordinates: state requires a defined frame")
	}
	if len(vector) != broker.Size() {
		return nil, fmt.Errorf("coordinates: vector length %d does not match broker size %d", len(vector), broker.Size())
	}
	return &State{instant: instant, frame: f, broker: broker, vector: append([]float64{}, vector...)}, nil
}

func (s *State) Instant() time.Time { return s.instant }
func (s *State) Frame() frame.Frame { return s.frame }
func (s *State) Broker() *Broker    { return s.broker }

// Vector returns a copy of the full flat coordinate vector.
func (s *State) Vector() []float64 { return append([]float64{}, s.vector...) }

// Extract returns a copy of the named subset's slice of the state vector.
func (s *State) Extract(name string) ([]float64, error) {
	v, err := s.broker.Extract(s.vector, name)
	if err != nil {
		return nil, err
	}
	return append([]float64{}, v...), nil
}

// InFrame re-expresses every subset of the state into the target frame,
// subset by subset, via each Subset's InFrame implementation (spec §4.2).
// Dependent subsets (velocity, angular velocity) see the *original* frame's
// full vector as their dependency source, since the transform of each
// subset is frame-local and independent of the others' already-transformed
// values.
func (s *State) InFrame(to frame.Frame) (*State, error) {
	if s.frame == to {
		return NewState(s.instant, to, s.broker, s.vector)
	}
	out := make([]float64, len(s.vector))
	for _, subset := range s.broker.subsets {
		offset := s.broker.offsets[subset.Name()]
		value := s.vector[offset : offset+subset.Size()]
		transformed, err := subset.InFrame(s.instant, value, s.frame, to, s.vector, s.broker)
		if err != nil {
			return nil, fmt.Errorf("coordinates: transforming subset %q: %w", subset.Name(), err)
		}
		copy(out[offset:offset+subset.Size()], transformed)
	}
	return NewState(s.instant, to, s.broker, out)
}

// Add combines two states subset-by-subset, matching spec §4.2's
// "coordinate-wise addition" extrapolation/perturbation primitive. Both
// states must share a broker (same ordered subset list) and frame.
func (s *State) Add(other *State) (*State, error) {
	if !s.broker.Equals(other.broker) {
		return nil, fmt.Errorf("coordinates: cannot add states with different brokers")
	}
	if s.frame != other.frame {
		return nil, fmt.Errorf("coordinates: cannot add states in different frames (%s vs %s)", s.frame, other.frame)
	}
	out := make([]float64, len(s.vector))
	for _, subset := range s.broker.subsets {
		offset := s.broker.offsets[subset.Name()]
		lhs := s.vector[offset : offset+subset.Size()]
		rhs := other.vector[offset : offset+subset.Size()]
		summed, err := subset.Add(lhs, rhs)
		if err != nil {
			return nil, err
		}
		copy(out[offset:offset+subset.Size()], summed)
	}
	return NewState(s.instant, s.frame, s.broker, out)
}

// Subtract is Add's inverse, used by finite-difference Jacobians (package
// jacobian) and STM propagation to form coordinate-wise deltas.
func (s *State) Subtract(other *State) (*State, error) {
	if !s.broker.Equals(other.broker) {
		return nil, fmt.Errorf("coordinates: cannot subtract states with different brokers")
	}
	if s.frame != other.frame {
		return nil, fmt.Errorf("coordinates: cannot subtract states in different frames (%s vs %s)", s.frame, other.frame)
	}
	out := make([]float64, len(s.vector))
	for _, subset := range s.broker.subsets {
		offset := s.broker.offsets[subset.Name()]
		lhs := s.vector[offset : offset+subset.Size()]
		rhs := other.vector[offset : offset+subset.Size()]
		diff, err := subset.Subtract(lhs, rhs)
		if err != nil {
			return nil, err
		}
		copy(out[offset:offset+subset.Size()], diff)
	}
	return NewState(s.instant, s.frame, s.broker, out)
}

// WithInstant returns a copy of the state re-stamped at a different
// instant, leaving the vector untouched. Used when a propagator needs to
// tag a freshly-integrated vector before re-framing it.
func (s *State) WithInstant(instant time.Time) *State {
	return &State{instant: instant, frame: s.frame, broker: s.broker, vector: append([]float64{}, s.vector...)}
}

func (s *State) String() string {
	return fmt.Sprintf("State{instant=%s, frame=%s, size=%d}", s.instant.Format(time.RFC3339), s.frame, len(s.vector))
}
