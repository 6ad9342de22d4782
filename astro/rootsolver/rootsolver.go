// Package rootsolver provides the scalar bracketed root-finding
// collaborator (spec §6.1). It is an external concern in principle, but
// this module needs a concrete one to drive event-condition crossings
// (spec §4.5); the bisection/regula-falsi hybrid here is grounded on the
// iterative bracket-narrowing loop the teacher hand-writes for the Lambert
// problem in tools.go (`for math.Abs(Δt-Δt0Sec) > lambertTlambertε { ... }`),
// generalized from a domain-specific φ search to an arbitrary continuous
// function.
package rootsolver

import (
	"fmt"
	"math"
)

// Solver finds a root of a continuous function within a bracket.
type Solver struct {
	Tolerance     float64
	MaxIterations int
}

// Default returns a solver tuned the way the teacher tunes lambertε (1e-4):
// tight enough for trajectory work, bounded iteration count.
func Default() Solver {
	return Solver{Tolerance: 1e-9, MaxIterations: 200}
}

// Result carries the outcome of a bracketed solve.
type Result struct {
	Root      float64
	Converged bool
	Iterations int
}

// Solve finds x in [lo, hi] such that f(x) ~= 0, given f(lo) and f(hi) have
// opposite signs (or one of them is already within tolerance of zero).
// Uses regula-falsi with bisection fallback to guarantee bracket
// shrinkage, matching the teacher's "keep narrowing until converged"
// pattern in tools.go's Lambert solver.
func (s Solver) Solve(f func(float64) float64, lo, hi float64) (Result, error) {
	flo, fhi := f(lo), f(hi)
	if math.Abs(flo) <= s.Tolerance {
		return Result{Root: lo, Converged: true}, nil
	}
	if math.Abs(fhi) <= s.Tolerance {
		return Result{Root: hi, Converged: true}, nil
	}
	if sameSign(flo, fhi) {
		return Result{}, fmt.Errorf("rootsolver: function does not change sign on [%g, %g]", lo, hi)
	}
	for i := 0; i < s.MaxIterations; i++ {
		// Regula falsi estimate, falling back to the midpoint whenever it
		// would leave the bracket (keeps convergence guaranteed on
		// pathological curvature).
		mid := lo - flo*(hi-lo)/(fhi-flo)
		if mid <= lo || mid >= hi || math.IsNaN(mid) {
			mid = 0.5 * (lo + hi)
		}
		fm := f(mid)
		if math.Abs(fm) <= s.Tolerance || (hi-lo) < s.Tolerance {
			return Result{Root: mid, Converged: true, Iterations: i + 1}, nil
		}
		if sameSign(fm, flo) {
			lo, flo = mid, fm
		} else {
			hi, fhi = mid, fm
		}
	}
	return Result{Root: 0.5 * (lo + hi), Converged: false, Iterations: s.MaxIterations}, nil
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a <= 0 && b <= 0)
}
