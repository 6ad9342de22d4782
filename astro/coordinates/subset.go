// Package coordinates implements the typed coordinate broker that lets
// heterogeneous state vectors flow through the propagation engine without
// loss of meaning (spec §3 "CoordinateSubset"/"CoordinateBroker", §4.1).
//
// It generalizes the teacher's ad hoc approach: orbit.go hard-codes a
// position/velocity pair as two private []float64 fields, and mission.go's
// Mission.GetState/SetState hand-unpack a 7-element slice by fixed index
// per Propagator enum value. Here, any ordered set of named subsets can be
// packed into one flat vector, and each subset knows how to add, subtract,
// and re-express itself in another frame.
package coordinates

import (
	"fmt"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
)

// Subset is a named, fixed-size slice of a flat state vector, with
// frame-aware arithmetic. Implementations are stateless value types; the
// broker assigns offsets, never the subset itself.
type Subset interface {
	// Name is globally unique (spec §3 invariant).
	Name() string
	// Size is the subset's fixed dimension.
	Size() int
	// Default is the zero/identity value for this subset (e.g. a unit
	// quaternion for AttitudeQuaternion, not a zero vector).
	Default() []float64
	// Dependencies names subsets this one needs present in the broker to
	// transform correctly (e.g. CartesianVelocity depends on
	// CartesianPosition). Acyclic per spec §3.
	Dependencies() []string
	// Add combines two values of this subset. It takes no frame or broker
	// argument: both operands are combined as given, with no frame check.
	Add(lhs, rhs []float64) ([]float64, error)
	// Subtract is the inverse of Add.
	Subtract(lhs, rhs []float64) ([]float64, error)
	// InFrame re-expresses `value` (currently in `from`) into `to` at the
	// given instant. `fullVector`/`broker` let subsets with dependencies
	// (velocity needing position) reach their dependency's current value.
	InFrame(instant time.Time, value []float64, from, to frame.Frame, fullVector []float64, broker *Broker) ([]float64, error)
}

// ErrMissingDependency is returned by InFrame when a subset's dependency is
// not present in the broker it was handed.
type ErrMissingDependency struct {
	Subset, Dependency string
}

func (e *ErrMissingDependency) Error() string {
	return fmt.Sprintf("coordinates: subset %q requires %q to be present in the broker", e.Subset, e.Dependency)
}

// ErrUndefinedFrame is returned by arithmetic/reframing operations given an
// undefined frame.
var ErrUndefinedFrame = fmt.Errorf("coordinates: frame is undefined")

// --- Cartesian position/velocity -------------------------------------------------

type cartesianPosition struct{}

// CartesianPosition is the singleton 3-vector position subset.
var CartesianPosition Subset = cartesianPosition{}

func (cartesianPosition) Name() string           { return "CARTESIAN_POSITION" }
func (cartesianPosition) Size() int              { return 3 }
func (cartesianPosition) Default() []float64     { return []float64{0, 0, 0} }
func (cartesianPosition) Dependencies() []string { return nil }

func (cartesianPosition) Add(lhs, rhs []float64) ([]float64, error) {
	return addVec(lhs, rhs), nil
}

func (cartesianPosition) Subtract(lhs, rhs []float64) ([]float64, error) {
	return subVec(lhs, rhs), nil
}

func (cartesianPosition) InFrame(instant time.Time, value []float64, from, to frame.Frame, fullVector []float64, broker *Broker) ([]float64, error) {
	if !from.IsDefined() || !to.IsDefined() {
		return nil, ErrUndefinedFrame
	}
	t, err := frame.TransformTo(from, to, instant, value, nil)
	if err != nil {
		return nil, err
	}
	return t.ApplyToPosition(value), nil
}

type cartesianVelocity struct{}

// CartesianVelocity is the singleton 3-vector velocity subset. It depends
// on CartesianPosition because re-expressing a velocity in another frame
// requires the anchor position (spec §3/§4.1).
var CartesianVelocity Subset = cartesianVelocity{}

func (cartesianVelocity) Name() string           { return "CARTESIAN_VELOCITY" }
func (cartesianVelocity) Size() int              { return 3 }
func (cartesianVelocity) Default() []float64     { return []float64{0, 0, 0} }
func (cartesianVelocity) Dependencies() []string { return []string{CartesianPosition.Name()} }

func (cartesianVelocity) Add(lhs, rhs []float64) ([]float64, error) {
	return addVec(lhs, rhs), nil
}

func (cartesianVelocity) Subtract(lhs, rhs []float64) ([]float64, error) {
	return subVec(lhs, rhs), nil
}

func (cartesianVelocity) InFrame(instant time.Time, value []float64, from, to frame.Frame, fullVector []float64, broker *Broker) ([]float64, error) {
	if !from.IsDefined() || !to.IsDefined() {
		return nil, ErrUndefinedFrame
	}
	posOffset, ok := broker.Offset(CartesianPosition.Name())
	if !ok {
		return nil, &ErrMissingDependency{Subset: cartesianVelocity{}.Name(), Dependency: CartesianPosition.Name()}
	}
	r := fullVector[posOffset : posOffset+CartesianPosition.Size()]
	t, err := frame.TransformTo(from, to, instant, r, value)
	if err != nil {
		return nil, err
	}
	return t.ApplyToVelocity(r, value), nil
}

// --- Attitude quaternion / angular velocity --------------------------------------

type attitudeQuaternion struct{}

// AttitudeQuaternion is the singleton 4-vector (scalar-last, xyzw)
// orientation subset.
var AttitudeQuaternion Subset = attitudeQuaternion{}

func (attitudeQuaternion) Name() string           { return "ATTITUDE_QUATERNION" }
func (attitudeQuaternion) Size() int              { return 4 }
func (attitudeQuaternion) Default() []float64     { return []float64{0, 0, 0, 1} }
func (attitudeQuaternion) Dependencies() []string { return nil }

func (attitudeQuaternion) Add(lhs, rhs []float64) ([]float64, error) {
	return quatMul(lhs, rhs), nil
}

func (attitudeQuaternion) Subtract(lhs, rhs []float64) ([]float64, error) {
	// Small-angle rotation vector between the two orientations, padded with
	// a trailing zero so the result keeps Size()'s length like every other
	// subset's Subtract: 2*vec(q_lhs * q_rhs^-1).
	inv := quatConj(rhs)
	dq := quatMul(lhs, inv)
	return []float64{2 * dq[0], 2 * dq[1], 2 * dq[2], 0}, nil
}

func (attitudeQuaternion) InFrame(instant time.Time, value []float64, from, to frame.Frame, fullVector []float64, broker *Broker) ([]float64, error) {
	if !from.IsDefined() || !to.IsDefined() {
		return nil, ErrUndefinedFrame
	}
	if from == to {
		return append([]float64{}, value...), nil
	}
	return nil, fmt.Errorf("coordinates: no relative-orientation transform registered for %s -> %s", from, to)
}

type angularVelocity struct{}

// AngularVelocity is the singleton 3-vector body-rate subset, coupled with
// AttitudeQuaternion for frame change.
var AngularVelocity Subset = angularVelocity{}

func (angularVelocity) Name() string           { return "ANGULAR_VELOCITY" }
func (angularVelocity) Size() int              { return 3 }
func (angularVelocity) Default() []float64     { return []float64{0, 0, 0} }
func (angularVelocity) Dependencies() []string { return []string{AttitudeQuaternion.Name()} }

func (angularVelocity) Add(lhs, rhs []float64) ([]float64, error)      { return addVec(lhs, rhs), nil }
func (angularVelocity) Subtract(lhs, rhs []float64) ([]float64, error) { return subVec(lhs, rhs), nil }

func (angularVelocity) InFrame(instant time.Time, value []float64, from, to frame.Frame, fullVector []float64, broker *Broker) ([]float64, error) {
	if !from.IsDefined() || !to.IsDefined() {
		return nil, ErrUndefinedFrame
	}
	if _, ok := broker.Offset(AttitudeQuaternion.Name()); !ok {
		return nil, &ErrMissingDependency{Subset: angularVelocity{}.Name(), Dependency: AttitudeQuaternion.Name()}
	}
	if from == to {
		return append([]float64{}, value...), nil
	}
	return nil, fmt.Errorf("coordinates: no relative-orientation transform registered for %s -> %s", from, to)
}

// --- Frame-invariant scalars ------------------------------------------------------

// scalar is a frame-invariant, size-1 subset: Mass, DragCoefficient,
// SurfaceArea are all instances, matching spec §3's "pass-through under
// frame change" specialization.
type scalar struct{ name string }

func (s scalar) Name() string           { return s.name }
func (scalar) Size() int                { return 1 }
func (scalar) Default() []float64       { return []float64{0} }
func (scalar) Dependencies() []string   { return nil }
func (scalar) Add(lhs, rhs []float64) ([]float64, error) {
	return []float64{lhs[0] + rhs[0]}, nil
}
func (scalar) Subtract(lhs, rhs []float64) ([]float64, error) {
	return []float64{lhs[0] - rhs[0]}, nil
}
func (scalar) InFrame(instant time.Time, value []float64, from, to frame.Frame, fullVector []float64, broker *Broker) ([]float64, error) {
	if !from.IsDefined() || !to.IsDefined() {
		return nil, ErrUndefinedFrame
	}
	return append([]float64{}, value...), nil
}

// Mass is the singleton spacecraft-mass subset (kg).
var Mass Subset = scalar{"MASS"}

// DragCoefficient is the singleton Cd subset.
var DragCoefficient Subset = scalar{"DRAG_COEFFICIENT"}

// SurfaceArea is the singleton cross-sectional area subset (m^2).
var SurfaceArea Subset = scalar{"SURFACE_AREA"}

// registry backs SubsetByName, letting a propagator (package propagation)
// resolve a dynamics term's declared read/write subset names into concrete
// Subset values it was never directly handed, the way StateBuilder.Expand
// needs a Default() to inject e.g. Mass into a bare 6-vector orbit.
var registry = map[string]Subset{
	CartesianPosition.Name(): CartesianPosition,
	CartesianVelocity.Name(): CartesianVelocity,
	AttitudeQuaternion.Name(): AttitudeQuaternion,
	AngularVelocity.Name():   AngularVelocity,
	Mass.Name():              Mass,
	DragCoefficient.Name():   DragCoefficient,
	SurfaceArea.Name():       SurfaceArea,
}

// SubsetByName resolves one of this package's built-in singleton subsets by
// name.
func SubsetByName(name string) (Subset, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("coordinates: no registered subset named %q", name)
	}
	return s, nil
}

func addVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func subVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// quatMul computes the Hamilton product lhs * rhs, both in (x,y,z,w) order.
func quatMul(lhs, rhs []float64) []float64 {
	ax, ay, az, aw := lhs[0], lhs[1], lhs[2], lhs[3]
	bx, by, bz, bw := rhs[0], rhs[1], rhs[2], rhs[3]
	return []float64{
		aw*bx + ax*bw + ay*bz - az*by,
		aw*by - ax*bz + ay*bw + az*bx,
		aw*bz + ax*by - ay*bx + az*bw,
		aw*bw - ax*bx - ay*by - az*bz,
	}
}

func quatConj(q []float64) []float64 {
	return []float64{-q[0], -q[1], -q[2], q[3]}
}
