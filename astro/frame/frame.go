// Package frame provides the reference-frame collaborator consumed by the
// rest of the engine (spec §6.1 "Frame"): a handle plus the rotation and
// angular-velocity data needed to carry a position/velocity pair from one
// frame to another at a given instant.
//
// The full frame graph (precession, nutation, polar motion, SPICE kernels)
// is an external concern; this package supplies the minimal concrete
// frames the rest of the module exercises, generalized from the teacher's
// hand-rolled 3-1-3 Euler rotations in rotation.go.
package frame

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// EarthRotationRate is the mean sidereal rotation rate of the Earth, in rad/s.
const EarthRotationRate = 7.292115146706979e-5

// Frame identifies a reference frame by name. The zero value is undefined.
type Frame struct {
	name string
}

// Name returns the frame's identifier.
func (f Frame) Name() string { return f.name }

// IsDefined returns whether the frame has a name.
func (f Frame) IsDefined() bool { return f.name != "" }

func (f Frame) String() string { return f.name }

// GCRF is the (idealized, precession/nutation-free in this module) central
// inertial frame used throughout the examples and tests.
var GCRF = Frame{"GCRF"}

// ITRF is the Earth-fixed frame, rotating about the polar axis at
// EarthRotationRate relative to GCRF.
var ITRF = Frame{"ITRF"}

// VNC returns a non-inertial, state-dependent local-orbital frame: the
// unit vectors are recomputed from the anchor position/velocity every time
// a Transform is requested with an anchor, so "VNC" is not itself a
// singleton the way GCRF/ITRF are — callers obtain one via TransformTo with
// a populated anchor.
var VNC = Frame{"VNC"}

// Transform carries the rotation (and, for velocity, the angular velocity
// needed to add the ω×r Coriolis term) needed to re-express a
// position/velocity pair from one frame to another at a fixed instant.
type Transform struct {
	From, To Frame
	Instant  time.Time
	Rotation *mat.Dense // 3x3 direction cosine matrix, From -> To
	AngularVelocityOfToInFrom []float64 // ω of `To` w.r.t. `From`, expressed in `From`
}

// ApplyToPosition rotates a position vector from `From` into `To`.
func (t Transform) ApplyToPosition(r []float64) []float64 {
	return matVec3(t.Rotation, r)
}

// ApplyToVelocity rotates a velocity vector from `From` into `To`, coupling
// in the angular-velocity term v' = R(v - ω×r).
func (t Transform) ApplyToVelocity(r, v []float64) []float64 {
	omega := t.AngularVelocityOfToInFrom
	if omega == nil {
		return matVec3(t.Rotation, v)
	}
	rel := make([]float64, 3)
	cross := crossProduct(omega, r)
	for i := 0; i < 3; i++ {
		rel[i] = v[i] - cross[i]
	}
	return matVec3(t.Rotation, rel)
}

// TransformTo returns the Transform needed to go from `from` to `to` at the
// given instant. `anchor` (position, velocity in `from`) is required only
// when either endpoint is a state-dependent frame such as VNC; it may be
// nil otherwise.
func TransformTo(from, to Frame, instant time.Time, anchorR, anchorV []float64) (Transform, error) {
	if !from.IsDefined() || !to.IsDefined() {
		return Transform{}, fmt.Errorf("frame: undefined frame in transform")
	}
	if from == to {
		return Transform{From: from, To: to, Instant: instant, Rotation: identity3()}, nil
	}
	switch {
	case from == GCRF && to == ITRF:
		theta := gmst(instant)
		return Transform{From: from, To: to, Instant: instant, Rotation: rot3(theta),
			AngularVelocityOfToInFrom: []float64{0, 0, EarthRotationRate}}, nil
	case from == ITRF && to == GCRF:
		theta := gmst(instant)
		return Transform{From: from, To: to, Instant: instant, Rotation: rot3(-theta),
			AngularVelocityOfToInFrom: []float64{0, 0, -EarthRotationRate}}, nil
	case to == VNC:
		if anchorR == nil || anchorV == nil {
			return Transform{}, fmt.Errorf("frame: VNC transform requires an anchor state")
		}
		return Transform{From: from, To: to, Instant: instant, Rotation: vncRotation(anchorR, anchorV)}, nil
	case from == VNC:
		if anchorR == nil || anchorV == nil {
			return Transform{}, fmt.Errorf("frame: VNC transform requires an anchor state")
		}
		var inv mat.Dense
		inv.CloneFrom(vncRotation(anchorR, anchorV).T())
		return Transform{From: from, To: to, Instant: instant, Rotation: &inv}, nil
	default:
		return Transform{}, fmt.Errorf("frame: no direct transform from %s to %s", from, to)
	}
}

// vncRotation builds the rotation from the parent (usually GCRF) frame into
// the Velocity-Normal-Co-normal local orbital frame anchored at (r, v).
func vncRotation(r, v []float64) *mat.Dense {
	vHat := unit(v)
	h := crossProduct(r, v)
	nHat := unit(h)
	cHat := crossProduct(vHat, nHat)
	return mat.NewDense(3, 3, []float64{
		vHat[0], vHat[1], vHat[2],
		nHat[0], nHat[1], nHat[2],
		cHat[0], cHat[1], cHat[2],
	})
}

func gmst(t time.Time) float64 {
	// Linear sidereal-time model referenced to J2000; adequate for the
	// co-rotation and access-geometry uses in this module (a precise IAU
	// GMST model is the ephemeris service's concern, out of scope per
	// spec §1).
	j2000 := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	days := t.Sub(j2000).Hours() / 24.0
	const gmstAtJ2000 = 280.46061837 * math.Pi / 180.0
	theta := gmstAtJ2000 + EarthRotationRate*86400.0*days
	return math.Mod(theta, 2*math.Pi)
}

func rot3(theta float64) *mat.Dense {
	s, c := math.Sincos(theta)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func matVec3(m *mat.Dense, v []float64) []float64 {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, v))
	return []float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

func crossProduct(a, b []float64) []float64 {
	return []float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func unit(v []float64) []float64 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if n == 0 {
		return []float64{0, 0, 0}
	}
	return []float64{v[0] / n, v[1] / n, v[2] / n}
}
