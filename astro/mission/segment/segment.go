// Package segment implements the single coast/maneuver arc (spec §4.7
// "Segment"), the unit a Sequence (package sequence) chains end to end.
//
// Generalizes the teacher's waypoints.go Waypoint interface
// (Cleared()/ThrustDirection()) and spacecraft.go's Accelerate, which walks
// Spacecraft.WayPoints imperatively against one long-lived Orbit, into the
// spec's explicit closure-plus-solve shape: a Segment is configured once
// and Solve returns an immutable SegmentSolution instead of mutating the
// spacecraft in place.
package segment

import (
	"fmt"
	"math"
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/mat"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/dynamics"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/event"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/integrator"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/propagation"
)

// System carries the satellite-level defaults a Segment injects into an
// initial State when the caller's state does not already carry them (spec
// §4.7 "using the satellite system for defaults if not present"),
// generalizing spacecraft.go's DryMass/FuelMass/Drag fields into named
// coordinate-subset defaults.
type System struct {
	Mass            float64 // kg
	DragCoefficient float64
	SurfaceArea     float64 // m^2
}

// Type distinguishes a Segment's role, carried onto its SegmentSolution
// (spec §3 "Segment solution").
type Type int

const (
	Coast Type = iota
	Maneuver
)

func (t Type) String() string {
	if t == Maneuver {
		return "Maneuver"
	}
	return "Coast"
}

// Segment is one coast or maneuver arc terminated by an event.Condition
// (spec §4.7).
type Segment struct {
	SegmentName string
	SegmentType Type
	Condition   event.Condition
	Dynamics    []dynamics.Dynamics // baseline dynamics
	Thruster    *dynamics.Thruster  // non-nil only for Maneuver segments
	Integrator  *integrator.Integrator
	System      System

	logger kitlog.Logger
}

// NewCoast builds a coast segment: propagate under the baseline dynamics
// until condition fires (spec §6.2 "Segment.Coast").
func NewCoast(name string, condition event.Condition, dyn []dynamics.Dynamics, in *integrator.Integrator) *Segment {
	return &Segment{SegmentName: name, SegmentType: Coast, Condition: condition, Dynamics: dyn, Integrator: in, logger: newLogger(name)}
}

// NewManeuver builds a maneuver segment: propagate under the union of the
// baseline dynamics and the thruster until condition fires (spec §6.2
// "Segment.Maneuver").
func NewManeuver(name string, condition event.Condition, thruster *dynamics.Thruster, dyn []dynamics.Dynamics, in *integrator.Integrator) *Segment {
	return &Segment{SegmentName: name, SegmentType: Maneuver, Condition: condition, Dynamics: dyn, Thruster: thruster, Integrator: in, logger: newLogger(name)}
}

// WithSystem attaches the satellite defaults used to inject mass/drag/area
// and returns the segment for chaining.
func (s *Segment) WithSystem(sys System) *Segment {
	s.System = sys
	return s
}

func newLogger(name string) kitlog.Logger {
	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	return kitlog.With(l, "segment", name)
}

// Solution is the outcome of Solve (spec §3 "Segment solution").
type Solution struct {
	Name                 string
	Type                 Type
	States               []*coordinates.State // strictly monotone in instant; last == crossing state iff ConditionIsSatisfied
	Dynamics             []dynamics.Dynamics  // the effective dynamics list used (baseline, plus thruster for Maneuver)
	ConditionIsSatisfied bool
	TerminationReason    string
}

// effectiveDynamics returns the baseline dynamics plus the thruster, for a
// Maneuver segment.
func (s *Segment) effectiveDynamics() []dynamics.Dynamics {
	if s.SegmentType == Coast {
		return append([]dynamics.Dynamics{}, s.Dynamics...)
	}
	return append(append([]dynamics.Dynamics{}, s.Dynamics...), s.Thruster)
}

// Solve propagates from `state` under this segment's effective dynamics
// until Condition fires or maxDuration elapses (spec §4.7). It injects
// Mass/DragCoefficient/SurfaceArea from System into the initial state
// first, whichever of the three are not already present.
func (s *Segment) Solve(state *coordinates.State, maxDuration time.Duration) (*Solution, error) {
	injected, err := s.injectSystemDefaults(state)
	if err != nil {
		return nil, err
	}
	dyn := s.effectiveDynamics()
	prop, err := propagation.New(state.Frame(), dyn, s.Integrator)
	if err != nil {
		return nil, err
	}
	s.Integrator.Reset()
	s.Integrator.LogStates = true

	maxInstant := state.Instant().Add(maxDuration)
	result, err := prop.CalculateStateToCondition(injected, maxInstant, s.Condition)
	if err != nil {
		if _, ok := err.(*integrator.RootNotConvergedError); !ok {
			s.logger.Log("level", "error", "subsys", "astro", "segment", s.SegmentName, "err", err)
			return nil, err
		}
		s.logger.Log("level", "warn", "subsys", "astro", "segment", s.SegmentName, "msg", "root solver did not converge")
	}

	states := s.Integrator.ObservedStates()
	reason := "max duration reached"
	if result.ConditionIsSatisfied {
		reason = "condition satisfied"
	}
	s.logger.Log("level", "info", "subsys", "astro", "segment", s.SegmentName, "type", s.SegmentType, "states", len(states), "reason", reason)

	return &Solution{
		Name:                 s.SegmentName,
		Type:                 s.SegmentType,
		States:               states,
		Dynamics:             dyn,
		ConditionIsSatisfied: result.ConditionIsSatisfied,
		TerminationReason:    reason,
	}, nil
}

func (s *Segment) injectSystemDefaults(state *coordinates.State) (*coordinates.State, error) {
	broker := state.Broker()
	needsMass := !broker.Has(coordinates.Mass.Name())
	needsCd := !broker.Has(coordinates.DragCoefficient.Name())
	needsArea := !broker.Has(coordinates.SurfaceArea.Name())
	if !needsMass && !needsCd && !needsArea {
		return state, nil
	}
	subsets := append([]coordinates.Subset{}, broker.Subsets()...)
	if needsMass {
		subsets = append(subsets, coordinates.Mass)
	}
	if needsCd {
		subsets = append(subsets, coordinates.DragCoefficient)
	}
	if needsArea {
		subsets = append(subsets, coordinates.SurfaceArea)
	}
	newBroker, err := coordinates.NewBroker(subsets...)
	if err != nil {
		return nil, err
	}
	builder := coordinates.NewStateBuilder(newBroker, state.Frame())
	expanded, err := builder.Expand(state)
	if err != nil {
		return nil, err
	}
	values := map[string][]float64{}
	if needsMass {
		if s.System.Mass <= 0 {
			return nil, fmt.Errorf("segment: state has no mass subset and System.Mass is not positive")
		}
		values[coordinates.Mass.Name()] = []float64{s.System.Mass}
	}
	if needsCd {
		values[coordinates.DragCoefficient.Name()] = []float64{s.System.DragCoefficient}
	}
	if needsArea {
		values[coordinates.SurfaceArea.Name()] = []float64{s.System.SurfaceArea}
	}
	// Rebuild with the injected values applied (Extract returns a copy, so
	// the injection has to happen on the raw vector directly).
	raw := expanded.Vector()
	for name, v := range values {
		off, _ := newBroker.Offset(name)
		copy(raw[off:off+len(v)], v)
	}
	return coordinates.NewState(expanded.Instant(), expanded.Frame(), newBroker, raw)
}

// InitialMass returns the mass subset's value at the solution's first state.
func (sol *Solution) InitialMass() (float64, error) {
	return sol.massAt(0)
}

// FinalMass returns the mass subset's value at the solution's last state.
func (sol *Solution) FinalMass() (float64, error) {
	return sol.massAt(len(sol.States) - 1)
}

func (sol *Solution) massAt(i int) (float64, error) {
	if i < 0 || i >= len(sol.States) {
		return 0, fmt.Errorf("segment: solution has no states")
	}
	v, err := sol.States[i].Extract(coordinates.Mass.Name())
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// Duration is the propagated time span of the solution.
func (sol *Solution) Duration() time.Duration {
	if len(sol.States) == 0 {
		return 0
	}
	return sol.States[len(sol.States)-1].Instant().Sub(sol.States[0].Instant())
}

// ContributionsAt re-evaluates every dynamics term of the solution at the
// indexed observed state, returning term name -> contribution vector in the
// term's write-subset layout. Each solved state's broker already spans the
// union of the terms' read subsets, so no expansion is needed here.
func (sol *Solution) ContributionsAt(i int) (map[string][]float64, error) {
	if i < 0 || i >= len(sol.States) {
		return nil, fmt.Errorf("segment: state index %d out of range [0, %d)", i, len(sol.States))
	}
	state := sol.States[i]
	out := make(map[string][]float64, len(sol.Dynamics))
	for _, d := range sol.Dynamics {
		read := make(map[string][]float64, len(d.ReadSubsets()))
		for _, name := range d.ReadSubsets() {
			v, err := state.Extract(name)
			if err != nil {
				return nil, err
			}
			read[name] = v
		}
		contribution, err := d.Contribution(state.Instant(), read, state.Frame())
		if err != nil {
			return nil, err
		}
		out[d.Name()] = contribution
	}
	return out, nil
}

// ContributionMatrix stacks ContributionsAt over every observed state: one
// row per state, columns the concatenation of each dynamics term's
// contribution vector in the solution's dynamics order. This is the
// attribution view spec §4.7 calls out for finite-difference work: which
// term pushed the trajectory where, at every sample.
func (sol *Solution) ContributionMatrix() (*mat.Dense, error) {
	if len(sol.States) == 0 {
		return nil, fmt.Errorf("segment: solution has no states")
	}
	first, err := sol.ContributionsAt(0)
	if err != nil {
		return nil, err
	}
	cols := 0
	for _, d := range sol.Dynamics {
		cols += len(first[d.Name()])
	}
	m := mat.NewDense(len(sol.States), cols, nil)
	for i := range sol.States {
		contributions := first
		if i > 0 {
			contributions, err = sol.ContributionsAt(i)
			if err != nil {
				return nil, err
			}
		}
		col := 0
		for _, d := range sol.Dynamics {
			for _, v := range contributions[d.Name()] {
				m.Set(i, col, v)
				col++
			}
		}
	}
	return m, nil
}

// DeltaV computes, for a Maneuver solution, Isp * g0 * ln(m0/mf) (spec
// §4.7). For a Coast solution it approximates the time integral of the
// acceleration norm by summing the norms of the velocity differences
// between consecutive observed states (spec §4.7 "integrated acceleration norm over
// time for arbitrary segments").
func (sol *Solution) DeltaV(specificImpulse, standardGravity float64) (float64, error) {
	if sol.Type == Maneuver {
		m0, err := sol.InitialMass()
		if err != nil {
			return 0, err
		}
		mf, err := sol.FinalMass()
		if err != nil {
			return 0, err
		}
		if mf <= 0 || m0 <= 0 {
			return 0, fmt.Errorf("segment: non-positive mass in DeltaV computation")
		}
		return specificImpulse * standardGravity * math.Log(m0/mf), nil
	}
	total := 0.0
	for i := 1; i < len(sol.States); i++ {
		v0, err := sol.States[i-1].Extract(coordinates.CartesianVelocity.Name())
		if err != nil {
			return 0, err
		}
		v1, err := sol.States[i].Extract(coordinates.CartesianVelocity.Name())
		if err != nil {
			return 0, err
		}
		dv := 0.0
		for k := 0; k < 3; k++ {
			d := v1[k] - v0[k]
			dv += d * d
		}
		total += math.Sqrt(dv)
	}
	return total, nil
}
