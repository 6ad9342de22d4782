package estimation

import (
	"fmt"
	"math"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
)

// RangeError is spec §7's "physical out-of-range" kind for the BLM
// conversion: eccentricity outside [0, 0.99) or inclination outside
// [0°, 180°), ported from BrouwerLyddaneMean.cpp's two guard checks at the
// top of its Cartesian() conversion.
type RangeError struct {
	Field    string
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("estimation: %s %g outside the applicable range [%g, %g)", e.Field, e.Value, e.Min, e.Max)
}

// blmScalar is a frame-invariant size-1 subset for one Brouwer-Lyddane
// mean element, mirroring package coordinates' own "scalar" idiom
// (Mass/DragCoefficient/SurfaceArea) since these elements, like those, are
// not re-expressed by a frame change in this module. Angular elements wrap
// modulo 2π on Add/Subtract the way event's AngularCondition does.
type blmScalar struct {
	name    string
	angular bool
}

func (s blmScalar) Name() string           { return s.name }
func (blmScalar) Size() int                { return 1 }
func (blmScalar) Default() []float64       { return []float64{0} }
func (blmScalar) Dependencies() []string   { return nil }

func (s blmScalar) Add(lhs, rhs []float64) ([]float64, error) {
	sum := lhs[0] + rhs[0]
	if s.angular {
		sum = wrap2Pi(sum)
	}
	return []float64{sum}, nil
}

func (s blmScalar) Subtract(lhs, rhs []float64) ([]float64, error) {
	if s.angular {
		return []float64{wrapPi(wrap2Pi(lhs[0]) - wrap2Pi(rhs[0]))}, nil
	}
	return []float64{lhs[0] - rhs[0]}, nil
}

func (s blmScalar) InFrame(instant time.Time, value []float64, from, to frame.Frame, fullVector []float64, broker *coordinates.Broker) ([]float64, error) {
	if !from.IsDefined() || !to.IsDefined() {
		return nil, coordinates.ErrUndefinedFrame
	}
	return append([]float64{}, value...), nil
}

// The six Brouwer-Lyddane-mean elements plus the optional B* drag term
// (spec §4.10's TLE specialization state vector).
var (
	Inclination  coordinates.Subset = blmScalar{name: "BLM_INCLINATION"}
	RAAN         coordinates.Subset = blmScalar{name: "BLM_RAAN", angular: true}
	Eccentricity coordinates.Subset = blmScalar{name: "BLM_ECCENTRICITY"}
	AOP          coordinates.Subset = blmScalar{name: "BLM_AOP", angular: true}
	MeanAnomaly  coordinates.Subset = blmScalar{name: "BLM_MEAN_ANOMALY", angular: true}
	MeanMotion   coordinates.Subset = blmScalar{name: "BLM_MEAN_MOTION"}
	BStar        coordinates.Subset = blmScalar{name: "BLM_B_STAR"}
)

// NewBLMBroker builds the broker for the TLE specialization's state vector:
// the six BLM elements, plus B* when fitWithBStar (TLESolver.cpp's
// constructor flag).
func NewBLMBroker(fitWithBStar bool) (*coordinates.Broker, error) {
	subsets := []coordinates.Subset{Inclination, RAAN, Eccentricity, AOP, MeanAnomaly, MeanMotion}
	if fitWithBStar {
		subsets = append(subsets, BStar)
	}
	return coordinates.NewBroker(subsets...)
}

// reflectThreshold is BrouwerLyddaneMean.cpp's 175-degree pseudo-state
// cutover, in radians.
const reflectThreshold = 3.0543261909900763

// eccentricityMax and inclinationMax are the §7 BLM applicability bounds.
const eccentricityMax = 0.99
const inclinationMax = math.Pi

// coeVec packs (a, e, i, raan, aop, meanAnomaly), the layout
// BrouwerLyddaneMean.cpp's SI vectors use.
type coeVec [6]float64

func coeVecFromClassical(c classicalElements) coeVec {
	m := meanAnomalyFromTrue(c.Eccentricity, c.TrueAnomaly)
	return coeVec{c.SemiMajorAxis, c.Eccentricity, c.Inclination, c.RAAN, c.AOP, m}
}

func classicalFromCoeVec(v coeVec) classicalElements {
	nu := trueAnomalyFromMean(v[1], v[5])
	return classicalElements{SemiMajorAxis: v[0], Eccentricity: v[1], Inclination: v[2], RAAN: v[3], AOP: v[4], TrueAnomaly: nu}
}

// meeFromCOEVector is BrouwerLyddaneMean.cpp's getMEE lambda: the modified
// equinoctial elements of a (a,e,i,raan,aop,M) vector.
func meeFromCOEVector(v coeVec) [6]float64 {
	a, e, i, raan, aop, m := v[0], v[1], v[2], v[3], v[4], v[5]
	return [6]float64{
		a,
		e * math.Sin(raan+aop),
		e * math.Cos(raan+aop),
		math.Sin(i/2) * math.Sin(raan),
		math.Sin(i/2) * math.Cos(raan),
		raan + aop + m,
	}
}

// meanElementsFromMEE is BrouwerLyddaneMean.cpp's
// brouwerLyddaneMeanFromMEE lambda: recovers (a,e,i,raan,aop,M) from
// modified-equinoctial coordinates.
func meanElementsFromMEE(aeq [6]float64) coeVec {
	h, k := aeq[3], aeq[4]
	sum := h*h + k*k
	var meanInc float64
	if sum <= 1.0 {
		meanInc = math.Acos(1.0 - 2.0*sum)
	} else {
		meanInc = math.Acos(-1.0)
	}
	meanRaan := math.Atan2(h, k)
	if meanRaan < 0 {
		meanRaan += 2 * math.Pi
	}
	f, g := aeq[1], aeq[2]
	return coeVec{
		aeq[0],
		math.Sqrt(f*f + g*g),
		meanInc,
		meanRaan,
		math.Atan2(f, g) - meanRaan,
		aeq[5] - math.Atan2(f, g),
	}
}

// theoryOsculatingFromMean approximates the mean-to-osculating map that
// BrouwerLyddaneMean.cpp leaves as an injected `toCOEVector` theory
// callback. It ports the one closed-form, well-documented piece of that
// theory available without the full Brouwer-Lyddane secular/periodic
// model (not present in this module's grounding material): the semi-major
// axis correction factor SGP4's own initialization uses to separate mean
// from osculating elements (Hoots & Roehrich, Spacetrack Report #3,
// "recover mean motion and semimajor axis from input elements"), applied
// once rather than the nested refinement SGP4init performs.
// Eccentricity, inclination, RAAN, and AOP are passed through unchanged,
// matching SGP4 initialization's treatment of those as already
// first-order mean at this stage.
func theoryOsculatingFromMean(mu, j2, equatorialRadius float64, v coeVec) coeVec {
	if j2 == 0 {
		return v
	}
	a, e, i := v[0], v[1], v[2]
	ck2 := 0.5 * j2 * equatorialRadius * equatorialRadius
	cosi := math.Cos(i)
	x3thm1 := 3*cosi*cosi - 1
	betao2 := 1 - e*e
	betao := math.Sqrt(betao2)
	del := 1.5 * ck2 * x3thm1 / (a * a * betao * betao2)
	out := v
	out[0] = a * (1 - del)
	return out
}

// BLMFromCartesian converts a Cartesian position/velocity (meters, m/s,
// both length 3) into Brouwer-Lyddane mean elements packed in BLM broker
// order, via the fixed-point iteration in modified-equinoctial space
// ported from BrouwerLyddaneMean.cpp's Cartesian(). Per spec §9's design
// notes this preserves the best-seen-error guard (the loop breaks on the
// iterate's error increasing rather than continuing to diverge) and the
// inclination-near-180° pseudo-state reflection (π − i, −Ω).
func BLMFromCartesian(mu, j2, equatorialRadius float64, r, v []float64) ([]float64, error) {
	coe := cartesianToClassical(mu, r, v)
	if coe.Eccentricity < 0 || coe.Eccentricity >= eccentricityMax {
		return nil, &RangeError{Field: "eccentricity", Value: coe.Eccentricity, Min: 0, Max: eccentricityMax}
	}
	if coe.Inclination < 0 || coe.Inclination >= inclinationMax {
		return nil, &RangeError{Field: "inclination", Value: coe.Inclination, Min: 0, Max: inclinationMax}
	}

	targetR, targetV := append([]float64{}, r...), append([]float64{}, v...)
	candidate := coeVecFromClassical(coe)

	pseudoState := false
	if candidate[2] > reflectThreshold {
		candidate[2] = math.Pi - candidate[2]
		candidate[3] = wrap2Pi(-candidate[3])
		reflected := classicalFromCoeVec(candidate)
		targetR, targetV = classicalToCartesian(mu, reflected)
		pseudoState = true
	}

	mee := meeFromCOEVector(candidate)
	osculating2 := theoryOsculatingFromMean(mu, j2, equatorialRadius, candidate)
	mee2 := meeFromCOEVector(osculating2)

	meanMEE := mee
	meanMEE2 := addVec6(meanMEE, subVec6(mee, mee2))

	target := append(append([]float64{}, targetR...), targetV...)

	const tol = 1e-8
	const maxIter = 75
	errPrevious := 1.0
	errMagnitude := 0.9
	iter := 0
	var mean coeVec

	for errMagnitude > tol {
		mean = meanElementsFromMEE(meanMEE2)
		osculating2 = theoryOsculatingFromMean(mu, j2, equatorialRadius, mean)
		classical2 := classicalFromCoeVec(osculating2)
		r2, v2 := classicalToCartesian(mu, classical2)
		cart2 := append(append([]float64{}, r2...), v2...)

		var deltaSq, targetSq float64
		for k := range target {
			d := target[k] - cart2[k]
			deltaSq += d * d
			targetSq += target[k] * target[k]
		}
		errMagnitude = math.Sqrt(deltaSq / targetSq)

		if errPrevious > errMagnitude {
			errPrevious = errMagnitude
			mee2 = meeFromCOEVector(osculating2)
			meanMEE = meanMEE2
			meanMEE2 = addVec6(meanMEE, subVec6(mee, mee2))
		} else {
			// Best-seen-error guard (spec §9): stop with the best iterate
			// rather than continuing a diverging correction.
			break
		}
		if iter > maxIter {
			break
		}
		iter++
	}

	final := meanElementsFromMEE(meanMEE)
	if pseudoState {
		final[2] = math.Pi - final[2]
		final[3] = wrap2Pi(-final[3])
	}

	n := math.Sqrt(mu / (final[0] * final[0] * final[0]))
	return []float64{final[2], final[3], final[1], final[4], final[5], n}, nil
}

// BLMToCartesian reconstructs the Cartesian position/velocity the given
// mean elements (BLM broker order: inclination, raan, eccentricity, aop,
// mean anomaly, mean motion) correspond to, applying
// theoryOsculatingFromMean once in the forward direction (no iteration
// needed going from mean to osculating).
func BLMToCartesian(mu, j2, equatorialRadius float64, meanElements []float64) (r, v []float64) {
	n := meanElements[5]
	a := math.Cbrt(mu / (n * n))
	mean := coeVec{a, meanElements[2], meanElements[0], meanElements[1], meanElements[3], meanElements[4]}
	osculating := theoryOsculatingFromMean(mu, j2, equatorialRadius, mean)
	classical := classicalFromCoeVec(osculating)
	return classicalToCartesian(mu, classical)
}

func addVec6(a, b [6]float64) [6]float64 {
	var out [6]float64
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func subVec6(a, b [6]float64) [6]float64 {
	var out [6]float64
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func wrap2Pi(x float64) float64 {
	y := math.Mod(x, 2*math.Pi)
	if y < 0 {
		y += 2 * math.Pi
	}
	return y
}

func wrapPi(x float64) float64 {
	return wrap2Pi(x+math.Pi) - math.Pi
}
