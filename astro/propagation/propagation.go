// Package propagation implements the Propagator (spec §4.6): it composes a
// dynamics list into a right-hand side over a broker-driven union state and
// front-ends the integrator's time/condition operations.
//
// Generalizes the teacher's mission.go Mission.Func/GetState/SetState trio
// (a hand-unpacked float array, switch-cased on a Propagator enum) into the
// broker-driven RHS assembly spec §4.6 describes, reusing
// perturbations.go's additive-accumulation idiom (pert[i] += ...) but keyed
// by write-subset offsets instead of fixed array indices.
package propagation

import (
	"fmt"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/dynamics"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/event"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/integrator"
)

// Propagator owns an ordered dynamics list and an integrator, and composes
// the RHS given a fixed output frame (spec §4.6: "always the environment's
// central inertial frame in the core").
type Propagator struct {
	Dynamics   []dynamics.Dynamics
	Integrator *integrator.Integrator
	Frame      frame.Frame
}

// New validates the dynamics list is non-empty and builds a Propagator
// targeting the given frame.
func New(f frame.Frame, dyn []dynamics.Dynamics, in *integrator.Integrator) (*Propagator, error) {
	if len(dyn) == 0 {
		return nil, fmt.Errorf("propagation: at least one dynamics term is required")
	}
	if !f.IsDefined() {
		return nil, fmt.Errorf("propagation: undefined output frame")
	}
	return &Propagator{Dynamics: dyn, Integrator: in, Frame: f}, nil
}

// compiled holds the broker that compile builds over every dynamics
// term's read and write subsets (spec §4.6 step 1: "the union broker"), preserving the
// caller's subset order and appending any missing ones. writeOffsets maps
// each dynamics term to the slice of the derivative vector it contributes
// to (step 2: "the write map").
type compiled struct {
	broker       *coordinates.Broker
	builder      *coordinates.StateBuilder
	writeOffsets [][]int // per-dynamics, one offset per its WriteSubsets() entry
}

func (p *Propagator) compile(seed *coordinates.Broker) (*compiled, error) {
	byName := make(map[string]coordinates.Subset, len(seed.Subsets()))
	order := append([]coordinates.Subset{}, seed.Subsets()...)
	for _, s := range order {
		byName[s.Name()] = s
	}
	for _, d := range p.Dynamics {
		for _, name := range append(append([]string{}, d.ReadSubsets()...), d.WriteSubsets()...) {
			if _, ok := byName[name]; ok {
				continue
			}
			subset, err := coordinates.SubsetByName(name)
			if err != nil {
				return nil, fmt.Errorf("propagation: dynamics %q needs subset %q which is not registered: %w", d.Name(), name, err)
			}
			byName[name] = subset
			order = append(order, subset)
		}
	}
	broker, err := coordinates.NewBroker(order...)
	if err != nil {
		return nil, err
	}
	writeOffsets := make([][]int, len(p.Dynamics))
	for di, d := range p.Dynamics {
		offsets := make([]int, 0)
		for _, name := range d.WriteSubsets() {
			off, ok := broker.Offset(name)
			if !ok {
				return nil, fmt.Errorf("propagation: write subset %q not in compiled broker", name)
			}
			offsets = append(offsets, off)
		}
		writeOffsets[di] = offsets
	}
	return &compiled{broker: broker, builder: coordinates.NewStateBuilder(broker, p.Frame), writeOffsets: writeOffsets}, nil
}

// rhs assembles spec §4.6 step 3: reconstruct the State, zero the
// derivative, accumulate each dynamics term's contribution at its write
// offsets.
func (c *compiled) rhs(p *Propagator, t0 time.Time) integrator.RHS {
	return func(instant time.Time, x []float64) ([]float64, error) {
		deriv := make([]float64, len(x))
		for di, d := range p.Dynamics {
			read := make(map[string][]float64, len(d.ReadSubsets()))
			for _, name := range d.ReadSubsets() {
				v, err := c.broker.Extract(x, name)
				if err != nil {
					return nil, err
				}
				read[name] = v
			}
			contribution, err := d.Contribution(instant, read, p.Frame)
			if err != nil {
				return nil, fmt.Errorf("propagation: dynamics %q at %s: %w", d.Name(), instant.Format(time.RFC3339Nano), err)
			}
			// Slice the contribution back out per write-subset width and
			// accumulate additively (perturbations.go's "pert[i] += ..."
			// idiom, generalized to arbitrary offsets).
			pos := 0
			for wi, name := range d.WriteSubsets() {
				width := subsetWidth(c.broker, name)
				off := c.writeOffsets[di][wi]
				for i := 0; i < width; i++ {
					deriv[off+i] += contribution[pos+i]
				}
				pos += width
			}
		}
		return deriv, nil
	}
}

func subsetWidth(b *coordinates.Broker, name string) int {
	for _, s := range b.Subsets() {
		if s.Name() == name {
			return s.Size()
		}
	}
	return 0
}

// CalculateStateAt propagates x0 to a single instant.
func (p *Propagator) CalculateStateAt(x0 *coordinates.State, t time.Time) (*coordinates.State, error) {
	out, err := p.CalculateStatesAt(x0, []time.Time{t})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// CalculateStatesAt propagates x0 to each of a sorted list of instants
// (spec §4.6).
func (p *Propagator) CalculateStatesAt(x0 *coordinates.State, instants []time.Time) ([]*coordinates.State, error) {
	expanded, c, err := p.expandAndCompile(x0)
	if err != nil {
		return nil, err
	}
	stateAt := func(instant time.Time, vector []float64) (*coordinates.State, error) {
		return coordinates.NewState(instant, p.Frame, c.broker, vector)
	}
	return p.Integrator.IntegrateToInstants(expanded, instants, c.rhs(p, x0.Instant()), stateAt)
}

// CalculateStateToCondition propagates x0 forward/backward until condition
// fires or maxInstant is reached (spec §4.6).
func (p *Propagator) CalculateStateToCondition(x0 *coordinates.State, maxInstant time.Time, condition event.Condition) (integrator.ConditionResult, error) {
	expanded, c, err := p.expandAndCompile(x0)
	if err != nil {
		return integrator.ConditionResult{}, err
	}
	stateAt := func(instant time.Time, vector []float64) (*coordinates.State, error) {
		return coordinates.NewState(instant, p.Frame, c.broker, vector)
	}
	return p.Integrator.IntegrateToCondition(expanded, maxInstant, c.rhs(p, x0.Instant()), stateAt, condition)
}

// expandAndCompile builds the union broker and widens x0 (already in the
// propagator's frame) into it, injecting defaults for any subset a
// dynamics term needs that the caller did not supply (spec §4.6 step 1,
// via coordinates.StateBuilder.Expand).
func (p *Propagator) expandAndCompile(x0 *coordinates.State) (*coordinates.State, *compiled, error) {
	inFrame := x0
	if x0.Frame() != p.Frame {
		var err error
		inFrame, err = x0.InFrame(p.Frame)
		if err != nil {
			return nil, nil, err
		}
	}
	c, err := p.compile(inFrame.Broker())
	if err != nil {
		return nil, nil, err
	}
	expanded, err := c.builder.Expand(inFrame)
	if err != nil {
		return nil, nil, err
	}
	return expanded, c, nil
}
