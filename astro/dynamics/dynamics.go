// Package dynamics implements the composable force-model terms that a
// propagator sums into a state derivative (spec §4.3 "Dynamics term").
//
// Generalizes the teacher's perturbations.go (a single Perturbations
// struct with one grab-bag Perturb method switch-cased on Propagator) and
// mission.go's Func (inlined two-body + J2/J3 + rotated-thrust math) into
// independent, composable Dynamics values, each declaring which coordinate
// subsets it reads and which it writes — spec §9's "dynamics as data, not
// inheritance" design note.
package dynamics

import (
	"fmt"
	"math"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/body"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/guidance"
)

// Dynamics is a single additive contribution to a state derivative. It
// declares its read-subsets (by name) and write-subsets (by name); the
// propagator gathers each term's ReadSubsets values out of the current
// state and passes them in, then adds Contribution's return value (ordered
// to match WriteSubsets, concatenated) into the accumulating derivative.
type Dynamics interface {
	Name() string
	ReadSubsets() []string
	WriteSubsets() []string
	Contribution(instant time.Time, read map[string][]float64, f frame.Frame) ([]float64, error)
}

// PositionDerivative contributes velocity as the position's time
// derivative — the identity term every propagation needs, generalized from
// the first three components of mission.go's Func return value.
type PositionDerivative struct{}

func (PositionDerivative) Name() string           { return "PositionDerivative" }
func (PositionDerivative) ReadSubsets() []string  { return []string{coordinates.CartesianVelocity.Name()} }
func (PositionDerivative) WriteSubsets() []string { return []string{coordinates.CartesianPosition.Name()} }

func (PositionDerivative) Contribution(instant time.Time, read map[string][]float64, f frame.Frame) ([]float64, error) {
	v, ok := read[coordinates.CartesianVelocity.Name()]
	if !ok {
		return nil, fmt.Errorf("dynamics: PositionDerivative missing %s", coordinates.CartesianVelocity.Name())
	}
	return append([]float64{}, v...), nil
}

// CentralBodyGravity contributes the two-body plus J2 oblateness
// acceleration of a single central body, generalized from mission.go's
// inlined two-body term and perturbations.go's J2-only correction into one
// term that reads Mu and J2 from the body's GravityModel. The model's J3
// coefficient is not applied.
type CentralBodyGravity struct {
	Body *body.Celestial
}

// NewCentralBodyGravity validates spec §4.3's requirement that the body
// expose a gravitational model and be marked as the environment's central
// body, rejecting it otherwise (mirroring NewThirdBodyGravity's
// construction-time validation of the dual invariant).
func NewCentralBodyGravity(b *body.Celestial) (*CentralBodyGravity, error) {
	if b.Gravity == nil {
		return nil, fmt.Errorf("dynamics: %s has no gravity model defined", b.Name)
	}
	if !b.IsCentralBody {
		return nil, fmt.Errorf("dynamics: %s is not marked as the environment's central body", b.Name)
	}
	return &CentralBodyGravity{Body: b}, nil
}

func (c *CentralBodyGravity) Name() string { return "CentralBodyGravity:" + c.Body.Name }
func (c *CentralBodyGravity) ReadSubsets() []string {
	return []string{coordinates.CartesianPosition.Name()}
}
func (c *CentralBodyGravity) WriteSubsets() []string {
	return []string{coordinates.CartesianVelocity.Name()}
}

func (c *CentralBodyGravity) Contribution(instant time.Time, read map[string][]float64, f frame.Frame) ([]float64, error) {
	if c.Body.Gravity == nil {
		return nil, fmt.Errorf("dynamics: %s has no gravity model defined", c.Body.Name)
	}
	if !c.Body.IsCentralBody {
		return nil, fmt.Errorf("dynamics: %s is not marked as the environment's central body", c.Body.Name)
	}
	r, ok := read[coordinates.CartesianPosition.Name()]
	if !ok {
		return nil, fmt.Errorf("dynamics: CentralBodyGravity missing %s", coordinates.CartesianPosition.Name())
	}
	mu := c.Body.Gravity.Mu
	rNorm := norm3(r)
	if rNorm == 0 {
		return nil, fmt.Errorf("dynamics: position is zero, gravity is undefined at the origin")
	}
	a := make([]float64, 3)
	scale := -mu / (rNorm * rNorm * rNorm)
	for i := 0; i < 3; i++ {
		a[i] = scale * r[i]
	}
	j2 := j2Acceleration(r, mu, c.Body.Gravity.J2, c.Body.EquatorialRadius)
	for i := 0; i < 3; i++ {
		a[i] += j2[i]
	}
	return a, nil
}

// j2Acceleration is the standard oblateness correction, grounded on
// perturbations.go's Perturb Cartesian branch.
func j2Acceleration(r []float64, mu, j2, equatorialRadius float64) []float64 {
	if j2 == 0 {
		return []float64{0, 0, 0}
	}
	x, y, z := r[0], r[1], r[2]
	rNorm := norm3(r)
	z2OverR2 := (z * z) / (rNorm * rNorm)
	common := -1.5 * j2 * mu * equatorialRadius * equatorialRadius / (rNorm * rNorm * rNorm * rNorm * rNorm)
	return []float64{
		common * x * (1 - 5*z2OverR2),
		common * y * (1 - 5*z2OverR2),
		common * z * (3 - 5*z2OverR2),
	}
}

// ThirdBodyGravity contributes a perturbing body's point-mass
// acceleration, generalized from celestial.go's HelioOrbit-driven
// AutoThirdBody handling in perturbations.go. Forbidden (by construction,
// via NewThirdBodyGravity) on the same body the propagation is centered on.
type ThirdBodyGravity struct {
	Central    *body.Celestial
	Perturbing *body.Celestial
}

// NewThirdBodyGravity validates spec §4.3's "forbidden on the central body
// of the same environment" invariant at construction time.
func NewThirdBodyGravity(central, perturbing *body.Celestial) (*ThirdBodyGravity, error) {
	if central == perturbing || central.Name == perturbing.Name {
		return nil, fmt.Errorf("dynamics: third-body gravity cannot perturb from the central body %s", central.Name)
	}
	return &ThirdBodyGravity{Central: central, Perturbing: perturbing}, nil
}

func (t *ThirdBodyGravity) Name() string { return "ThirdBodyGravity:" + t.Perturbing.Name }
func (t *ThirdBodyGravity) ReadSubsets() []string {
	return []string{coordinates.CartesianPosition.Name()}
}
func (t *ThirdBodyGravity) WriteSubsets() []string {
	return []string{coordinates.CartesianVelocity.Name()}
}

func (t *ThirdBodyGravity) Contribution(instant time.Time, read map[string][]float64, f frame.Frame) ([]float64, error) {
	if t.Perturbing.Gravity == nil {
		return nil, fmt.Errorf("dynamics: %s has no gravity model defined", t.Perturbing.Name)
	}
	r, ok := read[coordinates.CartesianPosition.Name()]
	if !ok {
		return nil, fmt.Errorf("dynamics: ThirdBodyGravity missing %s", coordinates.CartesianPosition.Name())
	}
	dPerturbing, err := t.Perturbing.PositionAt(instant)
	if err != nil {
		return nil, err
	}
	dCentral, err := t.Central.PositionAt(instant)
	if err != nil {
		return nil, err
	}
	// Vector from the central body to the perturbing body.
	bVec := sub3(dPerturbing, dCentral)
	// Vector from the spacecraft to the perturbing body.
	sVec := sub3(bVec, r)

	mu := t.Perturbing.Gravity.Mu
	sNorm, bNorm := norm3(sVec), norm3(bVec)
	if sNorm == 0 || bNorm == 0 {
		return nil, fmt.Errorf("dynamics: degenerate third-body geometry for %s", t.Perturbing.Name)
	}
	out := make([]float64, 3)
	for i := 0; i < 3; i++ {
		out[i] = mu * (sVec[i]/(sNorm*sNorm*sNorm) - bVec[i]/(bNorm*bNorm*bNorm))
	}
	return out, nil
}

// AtmosphericDrag contributes a drag deceleration along the relative
// (co-rotating-atmosphere-corrected) velocity, generalized from
// perturbations.go's J2 Cartesian branch plus spacecraft.go's Drag field.
// Per spec §9's open question, the co-rotation rate is not a hard-coded
// scalar: BodyFixedFrame names the frame the atmosphere co-rotates with
// (e.g. frame.ITRF for Earth), and the angular velocity is read off
// frame.TransformTo's Transform at the current instant. A zero-value
// BodyFixedFrame models a non-rotating atmosphere.
type AtmosphericDrag struct {
	Body           *body.Celestial
	BodyFixedFrame frame.Frame
}

// MinimumAltitude is the re-entry threshold: 70 km above the body's
// equatorial radius (spec §4.3 "Below a configured minimum radius ... the
// contribution is not computed; the propagator reports this as re-entry").
const MinimumAltitude = 70000.0 // meters

// ReentryError is returned when the spacecraft's altitude above the body
// falls below MinimumAltitude during drag evaluation (spec §7 "Physical
// out-of-range: altitude below re-entry threshold during propagation").
// Per the propagation policy (spec §7), dynamics throw up and the
// integrator does not catch it; the instant at which it occurred is
// reported via the wrapping error from propagation's RHS assembly.
type ReentryError struct {
	Body     string
	Altitude float64
}

func (e *ReentryError) Error() string {
	return fmt.Sprintf("dynamics: %s re-entry, altitude %.1f m below the %.1f m minimum", e.Body, e.Altitude, MinimumAltitude)
}

func (a *AtmosphericDrag) Name() string { return "AtmosphericDrag:" + a.Body.Name }
func (a *AtmosphericDrag) ReadSubsets() []string {
	return []string{
		coordinates.CartesianPosition.Name(),
		coordinates.CartesianVelocity.Name(),
		coordinates.Mass.Name(),
		coordinates.SurfaceArea.Name(),
		coordinates.DragCoefficient.Name(),
	}
}
func (a *AtmosphericDrag) WriteSubsets() []string {
	return []string{coordinates.CartesianVelocity.Name()}
}

func (a *AtmosphericDrag) Contribution(instant time.Time, read map[string][]float64, f frame.Frame) ([]float64, error) {
	if a.Body.Atmosphere == nil {
		return nil, fmt.Errorf("dynamics: %s has no atmospheric model defined", a.Body.Name)
	}
	r, ok := read[coordinates.CartesianPosition.Name()]
	if !ok {
		return nil, fmt.Errorf("dynamics: AtmosphericDrag missing %s", coordinates.CartesianPosition.Name())
	}
	v, ok := read[coordinates.CartesianVelocity.Name()]
	if !ok {
		return nil, fmt.Errorf("dynamics: AtmosphericDrag missing %s", coordinates.CartesianVelocity.Name())
	}
	mass := read[coordinates.Mass.Name()][0]
	area := read[coordinates.SurfaceArea.Name()][0]
	cd := read[coordinates.DragCoefficient.Name()][0]
	if mass <= 0 {
		return nil, fmt.Errorf("dynamics: mass must be positive for drag, got %g", mass)
	}

	rNorm := norm3(r)
	altitude := rNorm - a.Body.EquatorialRadius
	if altitude < MinimumAltitude {
		return nil, &ReentryError{Body: a.Body.Name, Altitude: altitude}
	}
	rho := a.Body.Atmosphere.Density(altitude)

	atmosphereVelocity := []float64{0, 0, 0}
	if a.BodyFixedFrame.IsDefined() && a.BodyFixedFrame != f {
		t, err := frame.TransformTo(f, a.BodyFixedFrame, instant, r, v)
		if err != nil {
			return nil, err
		}
		if t.AngularVelocityOfToInFrom != nil {
			atmosphereVelocity = cross3(t.AngularVelocityOfToInFrom, r)
		}
	}
	relVel := sub3(v, atmosphereVelocity)
	relSpeed := norm3(relVel)
	if relSpeed == 0 {
		return []float64{0, 0, 0}, nil
	}
	scale := -0.5 * rho * cd * area / mass * relSpeed
	out := make([]float64, 3)
	for i := 0; i < 3; i++ {
		out[i] = scale * relVel[i]
	}
	return out, nil
}

// Thruster contributes thrust acceleration and mass flow from a guidance
// law, generalized from thrusters.go's EPThruster + prop.go's ThrustControl
// composition in spacecraft.go's Accelerate.
type Thruster struct {
	Mu                     float64 // central body GM the guidance law's RTN frame is anchored to
	SpecificImpulse        float64 // seconds
	MaximumThrust          float64 // Newtons
	StandardGravity        float64 // m/s^2, for the rocket equation's g0 (teacher's thrusters.go convention)
	Law                    guidance.Law
}

func (t *Thruster) Name() string { return "Thruster:" + t.Law.Name() }
func (t *Thruster) ReadSubsets() []string {
	return []string{coordinates.CartesianPosition.Name(), coordinates.CartesianVelocity.Name(), coordinates.Mass.Name()}
}
func (t *Thruster) WriteSubsets() []string {
	return []string{coordinates.CartesianVelocity.Name(), coordinates.Mass.Name()}
}

func (t *Thruster) Contribution(instant time.Time, read map[string][]float64, f frame.Frame) ([]float64, error) {
	r, ok := read[coordinates.CartesianPosition.Name()]
	if !ok {
		return nil, fmt.Errorf("dynamics: Thruster missing %s", coordinates.CartesianPosition.Name())
	}
	v, ok := read[coordinates.CartesianVelocity.Name()]
	if !ok {
		return nil, fmt.Errorf("dynamics: Thruster missing %s", coordinates.CartesianVelocity.Name())
	}
	mass := read[coordinates.Mass.Name()][0]

	rtn, active, err := t.Law.Direction(instant, r, v, t.Mu)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 4) // velocity derivative (3) + mass derivative (1)
	if !active {
		return out, nil
	}
	if mass <= 0 {
		return nil, fmt.Errorf("dynamics: mass must be positive for thrust, got %g", mass)
	}
	accelDir := guidance.ToCartesian(r, v, rtn)
	accelMag := t.MaximumThrust / mass
	for i := 0; i < 3; i++ {
		out[i] = accelDir[i] * accelMag
	}
	out[3] = -t.MaximumThrust / (t.SpecificImpulse * t.StandardGravity)
	return out, nil
}

// FromEnvironment builds the default dynamics set for an environment (spec
// §4.3's factory): one position derivative, central-body gravity for the
// central body, third-body gravity for every other body carrying a gravity
// model, and atmospheric drag when the central body has an atmosphere.
// Generalizes the teacher's Perturbations struct, whose Perturb method
// bundles the same default effect set behind per-effect booleans
// (Perturbations.J2/J3/J4, PerturbBody, Drag) instead of a composed list.
func FromEnvironment(env *body.Environment) ([]Dynamics, error) {
	central, err := NewCentralBodyGravity(env.Central)
	if err != nil {
		return nil, err
	}
	out := []Dynamics{PositionDerivative{}, central}
	for _, other := range env.Others {
		if other.Gravity == nil {
			continue
		}
		third, err := NewThirdBodyGravity(env.Central, other)
		if err != nil {
			return nil, err
		}
		out = append(out, third)
	}
	if env.Central.Atmosphere != nil {
		out = append(out, &AtmosphericDrag{Body: env.Central, BodyFixedFrame: env.BodyFixedFrame})
	}
	return out, nil
}

func norm3(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func sub3(a, b []float64) []float64 {
	return []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross3(a, b []float64) []float64 {
	return []float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
