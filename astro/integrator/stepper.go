package integrator

import (
	"math"
	"time"

	"github.com/ChristopherRabotin/ode"
)

// takeStep advances (t, x) by one accepted step close to `requested`,
// returning the accepted instant/state, the RHS evaluated at both
// endpoints (for Hermite dense output) and the step size actually used —
// which becomes the controller's proposal for the following call. For
// Method == RK4 the step is always accepted as requested (no error
// control) and the stepping itself is delegated to ode.NewRK4, the same
// solver the teacher's Mission.Propagate and OrbitEstimate.PropagateUntil
// block on; for RKF78 a failing step is halved and retried, down to
// MinimumStepSize (spec §4.5).
func (in *Integrator) takeStep(t time.Time, x []float64, requested time.Duration, f RHS) (nextT time.Time, nextX, f0, f1 []float64, used time.Duration, err error) {
	if requested == 0 {
		return t, x, nil, nil, requested, nil
	}
	f0, err = f(t, x)
	if err != nil {
		return time.Time{}, nil, nil, nil, 0, err
	}

	if in.Method == RK4 {
		h := requested.Seconds()
		solver := &rk4Integrable{rhs: f, epoch: t, state: append([]float64{}, x...)}
		ode.NewRK4(0, h, solver).Solve() // Blocking.
		if solver.err != nil {
			return time.Time{}, nil, nil, nil, 0, solver.err
		}
		nextT = addSeconds(t, h)
		f1, err = f(nextT, solver.state)
		if err != nil {
			return time.Time{}, nil, nil, nil, 0, err
		}
		return nextT, solver.state, f0, f1, requested, nil
	}

	h := requested.Seconds()
	for {
		if math.Abs(h) < MinimumStepSize {
			return time.Time{}, nil, nil, nil, 0, &StepSizeUnderflowError{Instant: t}
		}
		high, low, ferr := rkf78Step(t, x, h, f)
		if ferr != nil {
			return time.Time{}, nil, nil, nil, 0, ferr
		}
		if in.errorWithinTolerance(high, low) {
			nextT = addSeconds(t, h)
			f1, ferr = f(nextT, high)
			if ferr != nil {
				return time.Time{}, nil, nil, nil, 0, ferr
			}
			// Spec §4.5 only specifies shrinking a step that fails
			// tolerance; an accepted step's size is proposed unchanged for
			// the next call rather than grown.
			nextStep := time.Duration(h * float64(time.Second))
			return nextT, high, f0, f1, nextStep, nil
		}
		h /= 2
	}
}

// errorWithinTolerance applies spec §4.5's componentwise controller:
// ||error_i|| <= abs + rel * ||x_i||.
func (in *Integrator) errorWithinTolerance(high, low []float64) bool {
	for i := range high {
		errI := math.Abs(high[i] - low[i])
		scale := in.AbsoluteTolerance + in.RelativeTolerance*math.Abs(high[i])
		if errI > scale {
			return false
		}
	}
	return true
}

func (in *Integrator) initialStep(forward bool) time.Duration {
	step := in.InitialStepSize
	if in.Method == RK4 && in.FixedStepSize != 0 {
		step = in.FixedStepSize
	}
	if step == 0 {
		step = 5 * time.Second
	}
	if !forward {
		step = -step
	}
	return step
}

// rk4Integrable adapts a single fixed step of the integrator's RHS to the
// ode.Integrable contract, the same role Mission and OrbitEstimate play for
// the teacher's ode.NewRK4(...).Solve() calls (mission.go, estimate.go).
// Stop halts the solver after one completed step so the surrounding
// observation/condition loop in takeStep's callers keeps control between
// steps; any RHS error is stashed and surfaced after Solve returns, since
// ode.Integrable's Func cannot return one.
type rk4Integrable struct {
	rhs   RHS
	epoch time.Time
	state []float64
	steps int
	err   error
}

func (o *rk4Integrable) GetState() []float64 { return o.state }

func (o *rk4Integrable) SetState(t float64, s []float64) {
	o.state = append([]float64{}, s...)
	o.steps++
}

func (o *rk4Integrable) Stop(t float64) bool { return o.err != nil || o.steps >= 1 }

func (o *rk4Integrable) Func(t float64, x []float64) []float64 {
	dx, err := o.rhs(addSeconds(o.epoch, t), x)
	if err != nil {
		o.err = err
		return make([]float64, len(x))
	}
	return dx
}

// Fehlberg's (1968) 13-stage Runge-Kutta 7(8) tableau: an 8th-order
// propagation formula with an embedded 7th-order estimate used only for
// local error control (spec §4.5's RKF78).
var (
	rkf78C = []float64{0, 2. / 27, 1. / 9, 1. / 6, 5. / 12, 1. / 2, 5. / 6, 1. / 6, 2. / 3, 1. / 3, 1, 0, 1}

	rkf78A = [13][12]float64{
		{},
		{2. / 27},
		{1. / 36, 1. / 12},
		{1. / 24, 0, 1. / 8},
		{5. / 12, 0, -25. / 16, 25. / 16},
		{1. / 20, 0, 0, 1. / 4, 1. / 5},
		{-25. / 108, 0, 0, 125. / 108, -65. / 27, 125. / 54},
		{31. / 300, 0, 0, 0, 61. / 225, -2. / 9, 13. / 900},
		{2, 0, 0, -53. / 6, 704. / 45, -107. / 9, 67. / 90, 3},
		{-91. / 108, 0, 0, 23. / 108, -976. / 135, 311. / 54, -19. / 60, 17. / 6, -1. / 12},
		{2383. / 4100, 0, 0, -341. / 164, 4496. / 1025, -301. / 82, 2133. / 4100, 45. / 82, 45. / 164, 18. / 41},
		{3. / 205, 0, 0, 0, 0, -6. / 41, -3. / 205, -3. / 41, 3. / 41, 6. / 41},
		{-1777. / 4100, 0, 0, -341. / 164, 4496. / 1025, -289. / 82, 2193. / 4100, 51. / 82, 33. / 164, 12. / 41, 0, 1},
	}

	// 8th order propagation weights.
	rkf78B8 = []float64{0, 0, 0, 0, 0, 34. / 105, 9. / 35, 9. / 35, 9. / 280, 9. / 280, 0, 41. / 840, 41. / 840}
	// 7th order weights, used only to form the error estimate.
	rkf78B7 = []float64{41. / 840, 0, 0, 0, 0, 34. / 105, 9. / 35, 9. / 35, 9. / 280, 9. / 280, 41. / 840, 0, 0}
)

// rkf78Step evaluates the 13 stages once and returns both the 8th-order
// ("high") and 7th-order ("low") combinations so the caller can form the
// local error estimate without re-evaluating the RHS.
func rkf78Step(t time.Time, x []float64, h float64, f RHS) (high, low []float64, err error) {
	n := len(x)
	k := make([][]float64, 13)
	tmp := make([]float64, n)
	for s := 0; s < 13; s++ {
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := 0; j < s; j++ {
				sum += rkf78A[s][j] * k[j][i]
			}
			tmp[i] = x[i] + h*sum
		}
		ks, ferr := f(addSeconds(t, rkf78C[s]*h), tmp)
		if ferr != nil {
			return nil, nil, ferr
		}
		k[s] = ks
	}
	high = make([]float64, n)
	low = make([]float64, n)
	for i := 0; i < n; i++ {
		hi, lo := 0.0, 0.0
		for s := 0; s < 13; s++ {
			hi += rkf78B8[s] * k[s][i]
			lo += rkf78B7[s] * k[s][i]
		}
		high[i] = x[i] + h*hi
		low[i] = x[i] + h*lo
	}
	return high, low, nil
}

// hermite is the cubic Hermite dense-output interpolant between two
// accepted step endpoints, used both to answer IntegrateToInstants'
// request instants and to evaluate an event.Condition at a root-solver
// trial point without re-stepping (spec §4.5 "the stepper's dense
// output"). frac is in [0, 1] along [t0, t0+h].
func hermite(x0, f0, x1, f1 []float64, h, frac float64) []float64 {
	out := make([]float64, len(x0))
	t := frac
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	for i := range x0 {
		out[i] = h00*x0[i] + h10*h*f0[i] + h01*x1[i] + h11*h*f1[i]
	}
	return out
}
