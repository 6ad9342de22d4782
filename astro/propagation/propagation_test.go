package propagation

import (
	"math"
	"testing"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/body"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/dynamics"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/guidance"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/integrator"
)

const earthMu = 3.986004418e14

func TestCalculateStateAtConservesCircularRadius(t *testing.T) {
	earth := body.NewCelestial("Earth", 6.378137e6, &body.GravityModel{Mu: earthMu}).AsCentralBody()
	broker, err := coordinates.NewBroker(coordinates.CartesianPosition, coordinates.CartesianVelocity)
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	radius := 7e6
	speed := math.Sqrt(earthMu / radius)
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	x0, err := coordinates.NewState(epoch, frame.GCRF, broker, []float64{radius, 0, 0, 0, speed, 0})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	prop, err := New(frame.GCRF, []dynamics.Dynamics{
		dynamics.PositionDerivative{},
		&dynamics.CentralBodyGravity{Body: earth},
	}, integrator.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := prop.CalculateStateAt(x0, epoch.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("CalculateStateAt: %v", err)
	}
	r, err := out.Extract(coordinates.CartesianPosition.Name())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
	if math.Abs(got-radius) > 1 {
		t.Errorf("expected radius to stay near %f m, got %f", radius, got)
	}
}

func TestCompileWidensBrokerForMassDependentDynamics(t *testing.T) {
	earth := body.NewCelestial("Earth", 6.378137e6, &body.GravityModel{Mu: earthMu}).AsCentralBody()
	broker, err := coordinates.NewBroker(coordinates.CartesianPosition, coordinates.CartesianVelocity)
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	x0, err := coordinates.NewState(epoch, frame.GCRF, broker, []float64{7e6, 0, 0, 0, 7546, 0})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	thruster := &dynamics.Thruster{
		Mu:              earthMu,
		SpecificImpulse: 2000,
		MaximumThrust:   0.1,
		StandardGravity: 9.80665,
		Law:             &guidance.ConstantThrust{Mode: guidance.Coast},
	}

	prop, err := New(frame.GCRF, []dynamics.Dynamics{
		dynamics.PositionDerivative{},
		&dynamics.CentralBodyGravity{Body: earth},
		thruster,
	}, integrator.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := prop.CalculateStateAt(x0, epoch.Add(time.Minute))
	if err != nil {
		t.Fatalf("CalculateStateAt with a thruster needing Mass: %v", err)
	}
	if !out.Broker().Has(coordinates.Mass.Name()) {
		t.Error("expected the propagator to widen the broker to include Mass for the thruster")
	}
}
