// Package integrator implements the event-driven adaptive ODE stepper
// (spec §4.5 "Numerical integrator" — "the hardest part"). It is
// single-threaded and sequential: all suspension is logical, advancing a
// clock through completed steps, never interrupted mid-step (spec §5).
//
// The fixed-step RK4 mode delegates its stepping to
// github.com/ChristopherRabotin/ode, the solver the teacher blocks on for
// both its mission propagation (mission.go's Mission.Propagate) and its OD
// propagation (estimate.go's OrbitEstimate.PropagateUntil), driven one
// accepted step at a time through the same ode.Integrable contract those
// two types implement. The adaptive RKF78 mode is this package's own:
// ode offers only a fixed-step RK4 with no embedded error estimate, no
// dense output, and no event hooks, none of which spec §4.5's adaptive
// tolerance control, request-instant interpolation, or condition root
// bracketing can do without.
package integrator

import (
	"fmt"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/event"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/rootsolver"
)

// RHS is the right-hand side of the ODE, dx/dt = f(t, x), supplied by a
// propagator (package propagation). It must be pure in (t, x).
type RHS func(instant time.Time, x []float64) ([]float64, error)

// StateAt wraps a raw vector at an instant into a *coordinates.State so the
// integrator can hand observed samples to an Observer and to an
// event.Condition. Supplied by the caller (a propagator knows its own
// frame and broker; the integrator does not).
type StateAt func(instant time.Time, vector []float64) (*coordinates.State, error)

// Method selects the stepping scheme.
type Method int

const (
	// RKF78 is the adaptive embedded Runge-Kutta-Fehlberg 7(8) pair, the
	// default (spec §4.5).
	RKF78 Method = iota
	// RK4 is the fixed-step classical fourth-order method, exposed for
	// deterministic tests (spec §4.5 "also exposes fixed-step RK4").
	RK4
)

// MinimumStepSize is the floor below which a rejected adaptive step is
// reported as StepSizeUnderflow rather than halved again (spec §4.5).
const MinimumStepSize = 1e-9 // seconds (1 ns)

// StepSizeUnderflowError is returned when the adaptive controller cannot
// satisfy tolerance above MinimumStepSize.
type StepSizeUnderflowError struct {
	Instant time.Time
}

func (e *StepSizeUnderflowError) Error() string {
	return fmt.Sprintf("integrator: step size underflow at %s", e.Instant.Format(time.RFC3339Nano))
}

// RootNotConvergedError is returned when a condition bracket exists but the
// root solver exhausts its iteration budget; the un-converged bracket state
// is still returned to the caller alongside the error (spec §4.5/§7).
type RootNotConvergedError struct {
	Bracket [2]time.Time
}

func (e *RootNotConvergedError) Error() string {
	return fmt.Sprintf("integrator: root solver did not converge on bracket [%s, %s]",
		e.Bracket[0].Format(time.RFC3339Nano), e.Bracket[1].Format(time.RFC3339Nano))
}

// Integrator advances a State under an RHS, logging observed states when
// LogStates is set (spec §4.5's "only observable side effect"). One
// instance must not be shared across concurrent integrations (spec §5);
// constructing another is cheap.
type Integrator struct {
	Method               Method
	RelativeTolerance    float64
	AbsoluteTolerance    float64
	InitialStepSize      time.Duration
	FixedStepSize        time.Duration // used only by Method == RK4
	RootSolver           rootsolver.Solver
	Observer             func(*coordinates.State)
	LogStates            bool

	observedStates []*coordinates.State
}

// Default returns an RKF78 integrator tuned the way spec §4.5 specifies:
// rel = abs = 1e-12, initial step 5 s.
func Default() *Integrator {
	return &Integrator{
		Method:            RKF78,
		RelativeTolerance: 1e-12,
		AbsoluteTolerance: 1e-12,
		InitialStepSize:   5 * time.Second,
		FixedStepSize:     1 * time.Second,
		RootSolver:        rootsolver.Default(),
	}
}

// ObservedStates returns the states logged since the last Reset, in the
// order they were produced by the most recent call (spec §4.5's "strictly
// monotone in instant" ordering guarantee holds within one call; across
// calls, no ordering is enforced).
func (in *Integrator) ObservedStates() []*coordinates.State {
	return append([]*coordinates.State{}, in.observedStates...)
}

// Reset clears the observed-states log.
func (in *Integrator) Reset() { in.observedStates = nil }

func (in *Integrator) observe(s *coordinates.State) {
	if in.LogStates {
		in.observedStates = append(in.observedStates, s)
	}
	if in.Observer != nil {
		in.Observer(s)
	}
}

// IntegrateToInstant is the degenerate single-instant case of spec §4.5's
// first public operation.
func (in *Integrator) IntegrateToInstant(x0 *coordinates.State, target time.Time, f RHS, stateAt StateAt) (*coordinates.State, error) {
	out, err := in.IntegrateToInstants(x0, []time.Time{target}, f, stateAt)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// IntegrateToInstants integrates from x0.Instant() through the request
// instants, which must be sorted strictly monotone in either direction
// (spec §4.5). Returns one state per request, in input order, each sampled
// from the stepper's dense output rather than forcing a step boundary
// exactly onto the request instant.
func (in *Integrator) IntegrateToInstants(x0 *coordinates.State, targets []time.Time, f RHS, stateAt StateAt) ([]*coordinates.State, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("integrator: no request instants given")
	}
	forward, err := monotoneDirection(x0.Instant(), targets)
	if err != nil {
		return nil, err
	}

	out := make([]*coordinates.State, len(targets))
	t0 := x0.Instant()
	x := x0.Vector()
	in.observe(x0)

	stepSize := in.initialStep(forward)
	nextTarget := 0

	cur := t0
	for nextTarget < len(targets) {
		target := targets[nextTarget]
		if cur == target {
			s, err := stateAt(cur, x)
			if err != nil {
				return nil, err
			}
			out[nextTarget] = s
			nextTarget++
			continue
		}
		// Clamp the step so it does not jump past the next request instant.
		maxStep := target.Sub(cur)
		if !forward {
			maxStep = cur.Sub(target)
		}
		step := stepSize
		if absDuration(step) > absDuration(maxStep) {
			if forward {
				step = maxStep
			} else {
				step = -maxStep
			}
		}
		next, nextX, fAt0, fAt1, usedStep, err := in.takeStep(cur, x, step, f)
		if err != nil {
			return nil, err
		}
		stepSize = usedStep

		// If this step landed past (or exactly on) the target, interpolate
		// back via dense output instead of accepting the overshoot state.
		if crossedOrAt(cur, next, target, forward) {
			frac := fractionTo(cur, next, target)
			interp := hermite(x, fAt0, nextX, fAt1, next.Sub(cur).Seconds(), frac)
			s, err := stateAt(target, interp)
			if err != nil {
				return nil, err
			}
			out[nextTarget] = s
			nextTarget++
			// Continue stepping from the *accepted* step, not the
			// interpolated point, preserving the stepper's own trajectory.
			cur, x = next, nextX
			in.observe(mustState(stateAt, cur, x))
			continue
		}
		cur, x = next, nextX
		in.observe(mustState(stateAt, cur, x))
	}
	return out, nil
}

// ConditionResult is the outcome of IntegrateToCondition (spec §4.5's third
// public operation).
type ConditionResult struct {
	State               *coordinates.State
	ConditionIsSatisfied bool
	IterationCount       int
	RootSolverConverged  bool
}

// IntegrateToCondition integrates forward/backward from x0 until either
// maxInstant is reached or condition becomes satisfied between two
// completed steps, in which case the crossing is located by the root
// solver over the dense-output interpolant (spec §4.5).
func (in *Integrator) IntegrateToCondition(x0 *coordinates.State, maxInstant time.Time, f RHS, stateAt StateAt, condition event.Condition) (ConditionResult, error) {
	forward := maxInstant.After(x0.Instant())
	cur := x0.Instant()
	x := x0.Vector()
	prevState := x0
	in.observe(x0)

	stepSize := in.initialStep(forward)
	iterations := 0

	for {
		if (forward && !cur.Before(maxInstant)) || (!forward && !cur.After(maxInstant)) {
			s, err := stateAt(maxInstant, x)
			if err != nil {
				return ConditionResult{}, err
			}
			return ConditionResult{State: s, ConditionIsSatisfied: false, IterationCount: iterations}, nil
		}

		maxStep := maxInstant.Sub(cur)
		if !forward {
			maxStep = -cur.Sub(maxInstant)
		}
		step := stepSize
		if absDuration(step) > absDuration(maxStep) {
			step = maxStep
		}

		next, nextX, fAt0, fAt1, usedStep, err := in.takeStep(cur, x, step, f)
		if err != nil {
			return ConditionResult{}, err
		}
		stepSize = usedStep
		iterations++

		curState, err := stateAt(next, nextX)
		if err != nil {
			return ConditionResult{}, err
		}
		satisfied, err := condition.IsSatisfied(curState, prevState)
		if err != nil {
			return ConditionResult{}, err
		}
		if satisfied {
			dt := next.Sub(cur).Seconds()
			evalAt := func(tau float64) float64 {
				frac := tau / dt
				interp := hermite(x, fAt0, nextX, fAt1, dt, frac)
				s, err := stateAt(addSeconds(cur, tau), interp)
				if err != nil {
					return 0
				}
				v, err := condition.Evaluate(s)
				if err != nil {
					return 0
				}
				return v
			}
			lo, hi := 0.0, dt
			if !forward {
				lo, hi = dt, 0.0
			}
			result, rerr := in.RootSolver.Solve(evalAt, min(lo, hi), max(lo, hi))
			rootInstant := addSeconds(cur, result.Root)
			rootVector := hermite(x, fAt0, nextX, fAt1, dt, result.Root/dt)
			rootState, serr := stateAt(rootInstant, rootVector)
			if serr != nil {
				return ConditionResult{}, serr
			}
			// A root at the step's entry instant repeats the state already
			// observed there; it is not logged a second time.
			if !rootInstant.Equal(cur) {
				in.observe(rootState)
			}
			if rerr != nil || !result.Converged {
				return ConditionResult{State: rootState, ConditionIsSatisfied: true, IterationCount: iterations, RootSolverConverged: false},
					&RootNotConvergedError{Bracket: [2]time.Time{cur, next}}
			}
			return ConditionResult{State: rootState, ConditionIsSatisfied: true, IterationCount: iterations, RootSolverConverged: true}, nil
		}

		in.observe(curState)
		cur, x, prevState = next, nextX, curState
	}
}

func mustState(stateAt StateAt, instant time.Time, x []float64) *coordinates.State {
	s, err := stateAt(instant, x)
	if err != nil {
		// stateAt failing after a successful step is a propagator wiring
		// bug (broker/frame mismatch), not a runtime condition; the
		// integrator has no recovery path for it.
		panic(err)
	}
	return s
}

func monotoneDirection(t0 time.Time, targets []time.Time) (forward bool, err error) {
	forward = targets[0].After(t0) || targets[0].Equal(t0)
	for k := 1; k < len(targets); k++ {
		prev, t := targets[k-1], targets[k]
		if forward && !t.After(prev) {
			return false, fmt.Errorf("integrator: request instants are not strictly monotone increasing")
		}
		if !forward && !t.Before(prev) {
			return false, fmt.Errorf("integrator: request instants are not strictly monotone decreasing")
		}
	}
	return forward, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func crossedOrAt(from, to, target time.Time, forward bool) bool {
	if forward {
		return !to.Before(target) && target.After(from)
	}
	return !to.After(target) && target.Before(from)
}

func fractionTo(from, to, target time.Time) float64 {
	total := to.Sub(from).Seconds()
	if total == 0 {
		return 0
	}
	return target.Sub(from).Seconds() / total
}

func addSeconds(t time.Time, seconds float64) time.Time {
	return t.Add(time.Duration(seconds * float64(time.Second)))
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
