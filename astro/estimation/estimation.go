// Package estimation implements the least-squares batch orbit determination
// component (spec §4.10): Gauss-Newton iteration that fits an initial state
// to a set of reference states, using the finite-difference Jacobian
// (package jacobian) in place of an analytically-derived one, plus a
// second EstimationModel specialized to TLE/SGP4 fitting over
// Brouwer-Lyddane mean elements (blm.go, sgp4.go).
//
// Grounded directly on the teacher's estimate.go OrbitEstimate (which
// propagates an STM alongside the orbit, analytically, for a single
// two-body+Jn force model) and station.go's Measurement/weight handling,
// generalized to spec §4.10's generic "(reference states, sigmas) ->
// Gauss-Newton update" loop over arbitrary coordinate subsets.
// gokalman.DenseIdentity seeds the prior covariance exactly the way
// NewOrbitEstimate seeds Φ with an identity STM. Options.EstimationSubsets
// restricts the fit to a chosen set of coordinates (spec §6.2/§4.10 step
// 3), which the TLE specialization uses to fit only the BLM element
// subsets and, optionally, B*.
package estimation

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ChristopherRabotin/gokalman"
	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/mat"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/jacobian"
)

// Reference is one observation: a reference state at some instant, with
// optional per-subset sigmas forming the diagonal of its measurement
// weight block (spec §4.10 "optional per-subset sigmas for ... references").
type Reference struct {
	State *coordinates.State
	Sigma []float64 // length == state.Broker().Size(); nil means unweighted (identity block)
}

// Options configures the Gauss-Newton loop (spec §4.10 step 5's
// termination conditions).
type Options struct {
	RMSUpdateThreshold float64
	MaxIterations      int
	GuessSigma         []float64 // prior sigma, nil -> P0^-1 = 0 (spec §4.10 step 4)

	// EstimationSubsets restricts the Gauss-Newton update to these named
	// coordinate subsets (spec §6.2/§4.10 step 3); the remaining
	// coordinates of guess pass through unchanged. Nil/empty fits every
	// coordinate of guess, the prior behavior.
	EstimationSubsets []string
}

// DefaultOptions matches the teacher's style of small, explicit numeric
// defaults (e.g. config.go's hard-coded tolerances): 1e-3 RMS threshold,
// 20 iterations, matching spec §8 S5.
func DefaultOptions() Options {
	return Options{RMSUpdateThreshold: 1e-3, MaxIterations: 20}
}

// StepLog is one iteration's bookkeeping (spec §4.10 "per-step log").
type StepLog struct {
	Iteration int
	RMS       float64
	DeltaRMS  float64
}

// Analysis is LSQ-OD's output (spec §4.10).
type Analysis struct {
	EstimatedState    *coordinates.State
	RMS               float64
	Iterations        int
	TerminationReason string
	Converged         bool
	Covariance        *mat.Dense // (H^T W H + P0^-1)^-1

	// FrisbeeCovariance is the reduced-chi-square-scaled covariance
	// variant (spec §4.10's Frisbee covariance output): Covariance scaled
	// by the converged weighted RMS squared, inflating the formal
	// covariance to account for reference-sigma misspecification. The
	// filtered grounding material names this output (the original
	// bindings' solution_frisbee_covariance) but its test stub stands in
	// an identity matrix rather than showing the real computation, so
	// this is this port's own interpretation of a standard OD technique
	// rather than a verified port.
	FrisbeeCovariance *mat.Dense

	Log []StepLog
}

// Propagate is the caller-supplied forward model: propagate `guess` to each
// of `instants` (spec §4.10 step 1). In the core this wraps a
// propagation.Propagator's CalculateStatesAt; the TLE specialization
// (SGP4Model.Propagate, over a BLM broker state) implements this same
// signature instead.
type Propagate func(guess *coordinates.State, instants []time.Time) ([]*coordinates.State, error)

// Estimate runs Gauss-Newton batch LSQ-OD (spec §4.10) given an initial
// guess and a set of reference observations.
func Estimate(guess *coordinates.State, references []Reference, propagate Propagate, opts Options) (*Analysis, error) {
	if len(references) == 0 {
		return nil, fmt.Errorf("estimation: at least one reference observation is required")
	}
	logger := newLogger("lsq-od")

	n := guess.Broker().Size()
	instants := make([]time.Time, len(references))
	for i, r := range references {
		instants[i] = r.State.Instant()
	}

	columns := fullColumns(n)
	if len(opts.EstimationSubsets) > 0 {
		idx, err := jacobian.Indices(guess.Broker(), opts.EstimationSubsets)
		if err != nil {
			return nil, err
		}
		columns = idx
	}
	p := len(columns)

	current := guess
	best := guess
	prevRMS := math.Inf(1)
	var log []StepLog
	reason := "Max Iterations"
	converged := false

	priorInverse := priorInverseCovariance(p, subsetValues(opts.GuessSigma, columns))

	var covariance *mat.Dense
	for iter := 0; iter < opts.MaxIterations; iter++ {
		predicted, err := propagate(current, instants)
		if err != nil {
			return nil, fmt.Errorf("estimation: propagation at iteration %d: %w", iter, err)
		}

		residuals := make([]*mat.VecDense, len(references))
		weightedSumSq := 0.0
		for i, ref := range references {
			diff, err := ref.State.Subtract(predicted[i])
			if err != nil {
				return nil, err
			}
			v := diff.Vector()
			w := weightsFor(ref.Sigma, n)
			residuals[i] = mat.NewVecDense(n, v)
			for k := 0; k < n; k++ {
				weightedSumSq += w[k] * v[k] * v[k]
			}
		}
		rms := math.Sqrt(weightedSumSq / float64(len(references)*n))
		deltaRMS := math.Abs(rms - prevRMS)
		log = append(log, StepLog{Iteration: iter, RMS: rms, DeltaRMS: deltaRMS})
		logger.Log("level", "info", "subsys", "astro", "iteration", iter, "rms", rms)

		if iter > 0 && rms > prevRMS {
			// Gauss-Newton divergence (spec §7): report and stop with the
			// best-so-far estimate rather than propagating the diverging
			// update.
			reason = "Divergence"
			current = best
			break
		}

		if iter > 0 && deltaRMS < opts.RMSUpdateThreshold {
			reason = "RMS Update Threshold"
			converged = true
			prevRMS = rms
			break
		}
		prevRMS = rms

		// Jacobian of the predicted-state-vs-initial-state mapping,
		// restricted to the chosen estimation subsets (spec §4.10 step 3),
		// central difference.
		H, err := jacobian.WithRespectToColumns(func(s *coordinates.State, ts []time.Time) ([]*coordinates.State, error) {
			return propagate(s, ts)
		}, current, instants, columns, jacobian.DefaultStepFraction, jacobian.Central)
		if err != nil {
			return nil, err
		}

		// Normal equations: (H^T W H + P0^-1) dx = H^T W r + P0^-1 (guess - current),
		// dx spanning only the chosen estimation subsets.
		HtWH := mat.NewDense(p, p, nil)
		HtWr := mat.NewVecDense(p, nil)
		for i, ref := range references {
			Hi := H.Slice(0, n, i*p, (i+1)*p)
			w := weightsFor(ref.Sigma, n)
			W := mat.NewDiagDense(n, w)
			var WHi mat.Dense
			WHi.Mul(W, Hi)
			var HtWHi mat.Dense
			HtWHi.Mul(Hi.T(), &WHi)
			HtWH.Add(HtWH, &HtWHi)

			var Wr mat.VecDense
			Wr.MulVec(W, residuals[i])
			var HtWri mat.VecDense
			HtWri.MulVec(Hi.T(), &Wr)
			HtWr.AddVec(HtWr, &HtWri)
		}
		HtWH.Add(HtWH, priorInverse)

		diffGuess, err := guess.Subtract(current)
		if err != nil {
			return nil, err
		}
		var priorTerm mat.VecDense
		priorTerm.MulVec(priorInverse, mat.NewVecDense(p, subsetValues(diffGuess.Vector(), columns)))
		HtWr.AddVec(HtWr, &priorTerm)

		var normalMatrixInverse mat.Dense
		if err := normalMatrixInverse.Inverse(HtWH); err != nil {
			return nil, fmt.Errorf("estimation: singular normal-equation matrix: %w", err)
		}
		var delta mat.VecDense
		delta.MulVec(&normalMatrixInverse, HtWr)
		covariance = &normalMatrixInverse

		best = current
		updated := addColumnsToState(current, delta.RawVector().Data, columns)
		current, err = coordinates.NewState(current.Instant(), current.Frame(), current.Broker(), updated)
		if err != nil {
			return nil, err
		}
	}

	var frisbee *mat.Dense
	if covariance != nil {
		frisbee = mat.DenseCopyOf(covariance)
		frisbee.Scale(prevRMS*prevRMS, frisbee)
	}

	return &Analysis{
		EstimatedState:    current,
		RMS:               prevRMS,
		Iterations:        len(log),
		TerminationReason: reason,
		Converged:         converged,
		Covariance:        covariance,
		FrisbeeCovariance: frisbee,
		Log:               log,
	}, nil
}

// fullColumns is the identity selection (every coordinate of an n-vector),
// matching jacobian.WithRespectToState's implicit column set before
// Options.EstimationSubsets narrows it.
func fullColumns(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// subsetValues restricts a full-length per-coordinate slice to the given
// flat-vector indices; nil passes through nil (spec §4.10 step 4's "no
// sigma supplied" case).
func subsetValues(v []float64, columns []int) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(columns))
	for k, c := range columns {
		out[k] = v[c]
	}
	return out
}

func weightsFor(sigma []float64, n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		if sigma == nil || sigma[i] == 0 {
			w[i] = 1
			continue
		}
		w[i] = 1 / (sigma[i] * sigma[i])
	}
	return w
}

// priorInverseCovariance builds P0^-1 from per-subset sigmas, or the zero
// matrix when no guess sigma is given (spec §4.10 step 4). gokalman's
// DenseIdentity (the teacher's own STM-seeding idiom in NewOrbitEstimate)
// seeds the identity before scaling by sigma.
func priorInverseCovariance(n int, sigma []float64) *mat.Dense {
	identity := gokalman.DenseIdentity(n)
	if sigma == nil {
		zero := mat.NewDense(n, n, nil)
		return zero
	}
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		if sigma[i] == 0 {
			continue
		}
		out.Set(i, i, identity.At(i, i)/(sigma[i]*sigma[i]))
	}
	return out
}

// addColumnsToState adds delta (length len(columns)) into the named
// flat-vector positions of s's vector, leaving every other coordinate
// unchanged (spec §4.10 step 3's "fit the chosen estimation subsets only").
func addColumnsToState(s *coordinates.State, delta []float64, columns []int) []float64 {
	out := s.Vector()
	for k, c := range columns {
		out[c] += delta[k]
	}
	return out
}

func newLogger(name string) kitlog.Logger {
	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	return kitlog.With(l, "estimate", name)
}
