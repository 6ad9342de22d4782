package segment

import (
	"math"
	"testing"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/body"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/dynamics"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/event"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/guidance"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/integrator"
)

const earthMu = 3.986004418e14

func circularState(t *testing.T, radius float64, epoch time.Time) *coordinates.State {
	t.Helper()
	broker, err := coordinates.NewBroker(coordinates.CartesianPosition, coordinates.CartesianVelocity)
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	speed := math.Sqrt(earthMu / radius)
	s, err := coordinates.NewState(epoch, frame.GCRF, broker, []float64{radius, 0, 0, 0, speed, 0})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func TestCoastSolveInjectsSystemDefaultsAndReachesCondition(t *testing.T) {
	earth := body.NewCelestial("Earth", 6.378137e6, &body.GravityModel{Mu: earthMu}).AsCentralBody()
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := circularState(t, 7e6, epoch)

	elapsed := func(s *coordinates.State) float64 { return s.Instant().Sub(epoch).Seconds() }
	condition := &event.InstantCondition{ConditionName: "300s elapsed", TargetSeconds: 300, EpochFunc: elapsed}

	seg := NewCoast("coast", condition, []dynamics.Dynamics{
		dynamics.PositionDerivative{},
		&dynamics.CentralBodyGravity{Body: earth},
	}, integrator.Default()).WithSystem(System{Mass: 150, DragCoefficient: 2.2, SurfaceArea: 1.2})

	sol, err := seg.Solve(s0, time.Hour)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !sol.ConditionIsSatisfied {
		t.Fatal("expected the elapsed-time condition to fire")
	}
	m0, err := sol.InitialMass()
	if err != nil {
		t.Fatalf("InitialMass: %v", err)
	}
	if m0 != 150 {
		t.Errorf("expected injected mass 150, got %f", m0)
	}
}

func TestManeuverSolveConsumesMass(t *testing.T) {
	earth := body.NewCelestial("Earth", 6.378137e6, &body.GravityModel{Mu: earthMu}).AsCentralBody()
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := circularState(t, 7e6, epoch)

	elapsed := func(s *coordinates.State) float64 { return s.Instant().Sub(epoch).Seconds() }
	condition := &event.InstantCondition{ConditionName: "60s elapsed", TargetSeconds: 60, EpochFunc: elapsed}

	thruster := &dynamics.Thruster{
		Mu:              earthMu,
		SpecificImpulse: 2000,
		MaximumThrust:   1.0,
		StandardGravity: 9.80665,
		Law:             &guidance.ConstantThrust{Mode: guidance.Tangential},
	}

	seg := NewManeuver("burn", condition, thruster, []dynamics.Dynamics{
		dynamics.PositionDerivative{},
		&dynamics.CentralBodyGravity{Body: earth},
	}, integrator.Default()).WithSystem(System{Mass: 100, DragCoefficient: 2.2, SurfaceArea: 1.0})

	sol, err := seg.Solve(s0, time.Hour)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	m0, err := sol.InitialMass()
	if err != nil {
		t.Fatalf("InitialMass: %v", err)
	}
	mf, err := sol.FinalMass()
	if err != nil {
		t.Fatalf("FinalMass: %v", err)
	}
	if mf >= m0 {
		t.Errorf("expected mass to decrease under constant thrust, got m0=%f mf=%f", m0, mf)
	}
	dv, err := sol.DeltaV(thruster.SpecificImpulse, thruster.StandardGravity)
	if err != nil {
		t.Fatalf("DeltaV: %v", err)
	}
	if dv <= 0 {
		t.Errorf("expected positive delta-v for a maneuver, got %f", dv)
	}
}

func TestContributionsAtAttributesEachTerm(t *testing.T) {
	earth := body.NewCelestial("Earth", 6.378137e6, &body.GravityModel{Mu: earthMu}).AsCentralBody()
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := circularState(t, 7e6, epoch)

	elapsed := func(s *coordinates.State) float64 { return s.Instant().Sub(epoch).Seconds() }
	condition := &event.InstantCondition{ConditionName: "60s elapsed", TargetSeconds: 60, EpochFunc: elapsed}

	gravity := &dynamics.CentralBodyGravity{Body: earth}
	seg := NewCoast("coast", condition, []dynamics.Dynamics{
		dynamics.PositionDerivative{},
		gravity,
	}, integrator.Default()).WithSystem(System{Mass: 100, DragCoefficient: 2.2, SurfaceArea: 1.0})

	sol, err := seg.Solve(s0, time.Hour)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	contributions, err := sol.ContributionsAt(0)
	if err != nil {
		t.Fatalf("ContributionsAt: %v", err)
	}
	posDeriv := contributions[dynamics.PositionDerivative{}.Name()]
	speed := math.Sqrt(earthMu / 7e6)
	if math.Abs(posDeriv[1]-speed) > 1e-6 {
		t.Errorf("position derivative = %v, want velocity [0 %f 0]", posDeriv, speed)
	}
	grav := contributions[gravity.Name()]
	wantAccel := -earthMu / (7e6 * 7e6)
	if math.Abs(grav[0]-wantAccel) > 1e-6 {
		t.Errorf("gravity contribution x = %f, want %f", grav[0], wantAccel)
	}

	matrix, err := sol.ContributionMatrix()
	if err != nil {
		t.Fatalf("ContributionMatrix: %v", err)
	}
	rows, cols := matrix.Dims()
	if rows != len(sol.States) {
		t.Errorf("matrix rows = %d, want one per state (%d)", rows, len(sol.States))
	}
	if cols != 6 {
		t.Errorf("matrix cols = %d, want 6 (3 position-derivative + 3 gravity)", cols)
	}
	if got := matrix.At(0, 1); math.Abs(got-speed) > 1e-6 {
		t.Errorf("matrix(0,1) = %f, want %f", got, speed)
	}
}

func TestSolveRejectsMissingMassWithNoSystemDefault(t *testing.T) {
	earth := body.NewCelestial("Earth", 6.378137e6, &body.GravityModel{Mu: earthMu}).AsCentralBody()
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := circularState(t, 7e6, epoch)

	thruster := &dynamics.Thruster{
		Mu:              earthMu,
		SpecificImpulse: 2000,
		MaximumThrust:   1.0,
		StandardGravity: 9.80665,
		Law:             &guidance.ConstantThrust{Mode: guidance.Tangential},
	}
	condition := &event.InstantCondition{ConditionName: "never", TargetSeconds: 1e9, EpochFunc: func(s *coordinates.State) float64 {
		return s.Instant().Sub(epoch).Seconds()
	}}

	seg := NewManeuver("burn", condition, thruster, []dynamics.Dynamics{
		dynamics.PositionDerivative{},
		&dynamics.CentralBodyGravity{Body: earth},
	}, integrator.Default())

	if _, err := seg.Solve(s0, time.Minute); err == nil {
		t.Fatal("expected an error injecting defaults with no System.Mass and no Mass subset present")
	}
}
