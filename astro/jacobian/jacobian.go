// Package jacobian implements the finite-difference Jacobian (spec §4.9):
// numerical partials of a state-valued trajectory function with respect to
// the initial state or to time, used by the least-squares OD component
// (package estimation).
//
// The teacher's estimate.go instead hand-derives an analytic two-body+J2/J3
// state-transition matrix inside OrbitEstimate.Func, integrated alongside
// the orbit itself. Spec §4.9 wants the opposite: differentiate the
// propagator's own output numerically, so no per-force-model partial needs
// maintaining — a simplification recorded as an Open Question resolution
// in DESIGN.md. The central/forward/backward-difference loop itself is
// grounded on the same "perturb one coordinate, re-run, difference"
// structure as gonum's fd package, generalized to coordinate-subset-aware
// perturbation and subtraction (so angles difference correctly via
// coordinates.State.Subtract).
package jacobian

import (
	"fmt"
	"math"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"gonum.org/v1/gonum/mat"
)

// Method selects the differencing scheme.
type Method int

const (
	Central Method = iota
	Forward
	Backward
)

// Function maps a state and a list of instants to a matrix of predicted
// states (columns = instants), matching spec §4.9's g(state, instants).
// The caller (package estimation, or any direct user) is responsible for
// making this a pure, deterministic function of its inputs (spec §4.9's
// contract), which in practice means it closes over a propagator whose
// integrator produces repeatable output for identical inputs.
type Function func(state *coordinates.State, instants []time.Time) ([]*coordinates.State, error)

// DefaultStepFraction is the default relative perturbation size used when a
// coordinate's magnitude is non-zero (spec §4.9 "step_fraction * |x_i|").
const DefaultStepFraction = 1e-6

// WithRespectToState computes d(g(state, instants))/d(state) over every
// coordinate of `state`, stacking the per-instant predicted-state vectors
// into one matrix whose rows are the coordinates of `state` and whose
// columns are concatenated (instant, coordinate) pairs, column-major by
// instant then coordinate (spec §4.9's result shape).
func WithRespectToState(g Function, state *coordinates.State, instants []time.Time, stepFraction float64, method Method) (*mat.Dense, error) {
	return WithRespectToColumns(g, state, instants, allColumns(state.Broker().Size()), stepFraction, method)
}

// Indices resolves a list of subset names into their flat-vector column
// positions within broker, in broker-packing order (spec §4.10 step 3's
// "chosen estimation subsets"). Used with WithRespectToColumns to
// differentiate only a subset of a state's coordinates rather than all of
// them — e.g. excluding mass/area/drag-coefficient from a batch fit that
// estimates only the orbital state.
func Indices(broker *coordinates.Broker, subsetNames []string) ([]int, error) {
	var idx []int
	for _, name := range subsetNames {
		offset, ok := broker.Offset(name)
		if !ok {
			return nil, fmt.Errorf("jacobian: broker has no subset %q", name)
		}
		var size int
		for _, s := range broker.Subsets() {
			if s.Name() == name {
				size = s.Size()
				break
			}
		}
		for k := 0; k < size; k++ {
			idx = append(idx, offset+k)
		}
	}
	return idx, nil
}

func allColumns(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// WithRespectToColumns is WithRespectToState restricted to the flat-vector
// columns named in `columns` (see Indices) — spec §4.10 step 3's Jacobian
// "in the chosen estimation subsets only". The returned matrix has
// len(columns)*len(instants) columns instead of n*len(instants); rows are
// still every coordinate of g's output, since the residual/weighting is
// still computed over the full predicted state.
func WithRespectToColumns(g Function, state *coordinates.State, instants []time.Time, columns []int, stepFraction float64, method Method) (*mat.Dense, error) {
	if stepFraction <= 0 {
		stepFraction = DefaultStepFraction
	}
	n := state.Broker().Size()
	base := state.Vector()

	baseline, err := g(state, instants)
	if err != nil {
		return nil, fmt.Errorf("jacobian: baseline evaluation: %w", err)
	}
	cols := len(columns)
	rowsPerInstant := n
	J := mat.NewDense(rowsPerInstant, cols*len(instants), nil)

	for col, j := range columns {
		step := stepFraction * math.Abs(base[j])
		if step == 0 {
			step = stepFraction
		}

		var plusStates, minusStates []*coordinates.State
		switch method {
		case Forward:
			plusStates, err = evaluateAt(g, state, base, j, step, instants)
			if err != nil {
				return nil, err
			}
		case Backward:
			minusStates, err = evaluateAt(g, state, base, j, -step, instants)
			if err != nil {
				return nil, err
			}
		default: // Central
			plusStates, err = evaluateAt(g, state, base, j, step, instants)
			if err != nil {
				return nil, err
			}
			minusStates, err = evaluateAt(g, state, base, j, -step, instants)
			if err != nil {
				return nil, err
			}
		}

		for i := range instants {
			var delta []float64
			switch method {
			case Forward:
				d, err := plusStates[i].Subtract(baseline[i])
				if err != nil {
					return nil, err
				}
				delta = scale(d.Vector(), 1/step)
			case Backward:
				d, err := baseline[i].Subtract(minusStates[i])
				if err != nil {
					return nil, err
				}
				delta = scale(d.Vector(), 1/step)
			default:
				d, err := plusStates[i].Subtract(minusStates[i])
				if err != nil {
					return nil, err
				}
				delta = scale(d.Vector(), 1/(2*step))
			}
			for row := 0; row < rowsPerInstant; row++ {
				J.Set(row, i*cols+col, delta[row])
			}
		}
	}
	return J, nil
}

// WithRespectToTime perturbs the evaluation instant(s) by +/- `delta` and
// central-differences, matching spec §4.9's "time-derivative variant".
func WithRespectToTime(g Function, state *coordinates.State, instants []time.Time, delta time.Duration) ([]*coordinates.State, error) {
	plus := shift(instants, delta)
	minus := shift(instants, -delta)
	plusStates, err := g(state, plus)
	if err != nil {
		return nil, err
	}
	minusStates, err := g(state, minus)
	if err != nil {
		return nil, err
	}
	out := make([]*coordinates.State, len(instants))
	for i := range instants {
		d, err := plusStates[i].Subtract(minusStates[i])
		if err != nil {
			return nil, err
		}
		scaled := scale(d.Vector(), 1/(2*delta.Seconds()))
		s, err := coordinates.NewState(instants[i], plusStates[i].Frame(), plusStates[i].Broker(), scaled)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func evaluateAt(g Function, state *coordinates.State, base []float64, coord int, delta float64, instants []time.Time) ([]*coordinates.State, error) {
	perturbed := append([]float64{}, base...)
	perturbed[coord] += delta
	ps, err := coordinates.NewState(state.Instant(), state.Frame(), state.Broker(), perturbed)
	if err != nil {
		return nil, err
	}
	return g(ps, instants)
}

func shift(instants []time.Time, d time.Duration) []time.Time {
	out := make([]time.Time, len(instants))
	for i, t := range instants {
		out[i] = t.Add(d)
	}
	return out
}

func scale(v []float64, factor float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * factor
	}
	return out
}
