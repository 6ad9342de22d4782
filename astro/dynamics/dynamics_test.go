package dynamics

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/body"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/guidance"
)

const earthMu = 3.986004418e14
const earthRadius = 6378137.0

func earth() *body.Celestial {
	return body.NewCelestial("Earth", earthRadius, &body.GravityModel{Mu: earthMu, J2: 1.08262668e-3}).AsCentralBody()
}

func TestPositionDerivativeReturnsVelocity(t *testing.T) {
	d := PositionDerivative{}
	read := map[string][]float64{coordinates.CartesianVelocity.Name(): {1, 2, 3}}
	out, err := d.Contribution(time.Now(), read, frame.GCRF)
	if err != nil {
		t.Fatalf("Contribution: %v", err)
	}
	if !floats.EqualApprox(out, []float64{1, 2, 3}, 1e-12) {
		t.Errorf("got %v, want the velocity unchanged", out)
	}
}

func TestCentralBodyGravityPointsInward(t *testing.T) {
	e := earth()
	e.Gravity.J2 = 0
	g := &CentralBodyGravity{Body: e}
	read := map[string][]float64{coordinates.CartesianPosition.Name(): {7000e3, 0, 0}}
	a, err := g.Contribution(time.Now(), read, frame.GCRF)
	if err != nil {
		t.Fatalf("Contribution: %v", err)
	}
	if a[0] >= 0 {
		t.Errorf("expected inward (negative x) acceleration at +x position, got %v", a)
	}
	expectedMag := earthMu / (7000e3 * 7000e3)
	if !scalar.EqualWithinAbs(-a[0], expectedMag, 1e-6) {
		t.Errorf("gravity magnitude = %v, want %v", -a[0], expectedMag)
	}
}

func TestCentralBodyGravityRequiresGravityModel(t *testing.T) {
	ungravitating := body.NewCelestial("Asteroid", 1000, nil)
	g := &CentralBodyGravity{Body: ungravitating}
	read := map[string][]float64{coordinates.CartesianPosition.Name(): {7000e3, 0, 0}}
	if _, err := g.Contribution(time.Now(), read, frame.GCRF); err == nil {
		t.Fatal("expected error for an undefined gravity model")
	}
}

func TestNewCentralBodyGravityRejectsUnmarkedBody(t *testing.T) {
	unmarked := body.NewCelestial("Earth", earthRadius, &body.GravityModel{Mu: earthMu})
	if _, err := NewCentralBodyGravity(unmarked); err == nil {
		t.Fatal("expected error for a body not marked as the environment's central body")
	}
	g := &CentralBodyGravity{Body: unmarked}
	read := map[string][]float64{coordinates.CartesianPosition.Name(): {7000e3, 0, 0}}
	if _, err := g.Contribution(time.Now(), read, frame.GCRF); err == nil {
		t.Fatal("expected Contribution to reject a body not marked central")
	}
}

func TestFromEnvironmentBuildsDefaultSet(t *testing.T) {
	moon := body.NewCelestial("Moon", 1.7374e6, &body.GravityModel{Mu: 4.9048695e12})
	rock := body.NewCelestial("Rock", 1000, nil)
	env, err := body.NewEnvironment(earth().WithAtmosphere(&body.AtmosphericModel{SurfaceDensity: 1.225, ScaleHeight: 8500}), moon, rock)
	if err != nil {
		t.Fatalf("NewEnvironment: %v", err)
	}
	env.WithBodyFixedFrame(frame.ITRF)

	dyn, err := FromEnvironment(env)
	if err != nil {
		t.Fatalf("FromEnvironment: %v", err)
	}
	// Position derivative, central-body gravity, third-body gravity for the
	// Moon (the ungravitating Rock is skipped), atmospheric drag.
	if len(dyn) != 4 {
		t.Fatalf("expected 4 dynamics terms, got %d", len(dyn))
	}
	if _, ok := dyn[0].(PositionDerivative); !ok {
		t.Errorf("first term is %T, want PositionDerivative", dyn[0])
	}
	if _, ok := dyn[1].(*CentralBodyGravity); !ok {
		t.Errorf("second term is %T, want *CentralBodyGravity", dyn[1])
	}
	third, ok := dyn[2].(*ThirdBodyGravity)
	if !ok || third.Perturbing.Name != "Moon" {
		t.Errorf("third term is %T (%v), want *ThirdBodyGravity for the Moon", dyn[2], dyn[2].Name())
	}
	drag, ok := dyn[3].(*AtmosphericDrag)
	if !ok || drag.BodyFixedFrame != frame.ITRF {
		t.Errorf("fourth term is %T, want *AtmosphericDrag co-rotating with ITRF", dyn[3])
	}
}

func TestNewThirdBodyGravityRejectsCentralBody(t *testing.T) {
	e := earth()
	if _, err := NewThirdBodyGravity(e, e); err == nil {
		t.Fatal("expected error when perturbing body equals the central body")
	}
}

func TestAtmosphericDragOpposesVelocity(t *testing.T) {
	e := earth()
	e.WithAtmosphere(&body.AtmosphericModel{SurfaceDensity: 1.2, ScaleHeight: 8500})
	d := &AtmosphericDrag{Body: e}
	read := map[string][]float64{
		coordinates.CartesianPosition.Name():  {earthRadius + 400e3, 0, 0},
		coordinates.CartesianVelocity.Name():  {0, 7.5e3, 0},
		coordinates.Mass.Name():               {500},
		coordinates.SurfaceArea.Name():        {2},
		coordinates.DragCoefficient.Name():    {2.2},
	}
	a, err := d.Contribution(time.Now(), read, frame.GCRF)
	if err != nil {
		t.Fatalf("Contribution: %v", err)
	}
	if a[1] >= 0 {
		t.Errorf("expected drag to decelerate along +y velocity, got %v", a)
	}
}

func TestAtmosphericDragReentryBelowMinimumAltitude(t *testing.T) {
	e := earth()
	e.WithAtmosphere(&body.AtmosphericModel{SurfaceDensity: 1.2, ScaleHeight: 8500})
	d := &AtmosphericDrag{Body: e}
	read := map[string][]float64{
		coordinates.CartesianPosition.Name(): {earthRadius + 10e3, 0, 0}, // 10 km, below the 70 km floor
		coordinates.CartesianVelocity.Name(): {0, 7.5e3, 0},
		coordinates.Mass.Name():              {500},
		coordinates.SurfaceArea.Name():       {2},
		coordinates.DragCoefficient.Name():   {2.2},
	}
	_, err := d.Contribution(time.Now(), read, frame.GCRF)
	if err == nil {
		t.Fatal("expected a re-entry error below the minimum altitude")
	}
	var reentry *ReentryError
	if !errors.As(err, &reentry) {
		t.Fatalf("expected *ReentryError, got %T: %v", err, err)
	}
}

func TestAtmosphericDragCoRotationUsesFrameTransform(t *testing.T) {
	e := earth()
	e.WithAtmosphere(&body.AtmosphericModel{SurfaceDensity: 1.2, ScaleHeight: 8500})
	spinning := &AtmosphericDrag{Body: e, BodyFixedFrame: frame.ITRF}
	stationary := &AtmosphericDrag{Body: e}
	read := map[string][]float64{
		coordinates.CartesianPosition.Name():  {earthRadius + 400e3, 0, 0},
		coordinates.CartesianVelocity.Name():  {0, 7.5e3, 0},
		coordinates.Mass.Name():               {500},
		coordinates.SurfaceArea.Name():        {2},
		coordinates.DragCoefficient.Name():    {2.2},
	}
	now := time.Now()
	aSpinning, err := spinning.Contribution(now, read, frame.GCRF)
	if err != nil {
		t.Fatalf("Contribution: %v", err)
	}
	aStationary, err := stationary.Contribution(now, read, frame.GCRF)
	if err != nil {
		t.Fatalf("Contribution: %v", err)
	}
	// Earth's co-rotation (frame.EarthRotationRate, read off the GCRF->ITRF
	// transform) reduces the relative speed at this position/velocity, so
	// the co-rotating drag deceleration must be strictly smaller in
	// magnitude than the non-rotating-atmosphere case.
	if math.Abs(aSpinning[1]) >= math.Abs(aStationary[1]) {
		t.Errorf("expected co-rotating atmosphere to reduce drag magnitude, got %v vs %v", aSpinning, aStationary)
	}
}

func TestThrusterCoastProducesZeroContribution(t *testing.T) {
	th := &Thruster{
		Mu:              earthMu,
		SpecificImpulse: 2000,
		MaximumThrust:   0.1,
		StandardGravity: 9.80665,
		Law:             &guidance.ConstantThrust{Mode: guidance.Coast},
	}
	read := map[string][]float64{
		coordinates.CartesianPosition.Name(): {7000e3, 0, 0},
		coordinates.CartesianVelocity.Name(): {0, 7.5e3, 0},
		coordinates.Mass.Name():              {500},
	}
	out, err := th.Contribution(time.Now(), read, frame.GCRF)
	if err != nil {
		t.Fatalf("Contribution: %v", err)
	}
	if !floats.EqualApprox(out, []float64{0, 0, 0, 0}, 1e-12) {
		t.Errorf("coast contribution = %v, want all zero", out)
	}
}

func TestThrusterTangentialBurnConsumesMass(t *testing.T) {
	th := &Thruster{
		Mu:              earthMu,
		SpecificImpulse: 2000,
		MaximumThrust:   0.1,
		StandardGravity: 9.80665,
		Law:             &guidance.ConstantThrust{Mode: guidance.Tangential},
	}
	read := map[string][]float64{
		coordinates.CartesianPosition.Name(): {7000e3, 0, 0},
		coordinates.CartesianVelocity.Name(): {0, 7.5e3, 0},
		coordinates.Mass.Name():              {500},
	}
	out, err := th.Contribution(time.Now(), read, frame.GCRF)
	if err != nil {
		t.Fatalf("Contribution: %v", err)
	}
	if out[3] >= 0 {
		t.Errorf("expected negative mass flow during a burn, got %v", out[3])
	}
}
