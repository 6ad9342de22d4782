package integrator

import (
	"math"
	"testing"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/event"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/rootsolver"
)

const earthMu = 3.986004418e14

func twoBodyRHS(instant time.Time, x []float64) ([]float64, error) {
	r := x[:3]
	v := x[3:6]
	rNorm := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
	scale := -earthMu / (rNorm * rNorm * rNorm)
	return []float64{v[0], v[1], v[2], scale * r[0], scale * r[1], scale * r[2]}, nil
}

func stateAt(broker *coordinates.Broker) StateAt {
	return func(instant time.Time, vector []float64) (*coordinates.State, error) {
		return coordinates.NewState(instant, frame.GCRF, broker, vector)
	}
}

func circularState(t *testing.T, radius float64, epoch time.Time) (*coordinates.State, *coordinates.Broker) {
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
	return s, broker
}

func TestIntegrateToInstantHoldsCircularRadius(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0, broker := circularState(t, 7e6, epoch)
	target := epoch.Add(30 * time.Minute)

	in := Default()
	out, err := in.IntegrateToInstant(s0, target, twoBodyRHS, stateAt(broker))
	if err != nil {
		t.Fatalf("IntegrateToInstant: %v", err)
	}
	r, err := out.Extract(coordinates.CartesianPosition.Name())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	radius := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
	if math.Abs(radius-7e6) > 1 {
		t.Errorf("expected radius to stay near 7e6 m, got %f", radius)
	}
	if !out.Instant().Equal(target) {
		t.Errorf("expected sampled instant %s, got %s", target, out.Instant())
	}
}

func TestIntegrateToInstantsReturnsMonotoneRequests(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0, broker := circularState(t, 7e6, epoch)
	targets := []time.Time{epoch.Add(5 * time.Minute), epoch.Add(10 * time.Minute), epoch.Add(20 * time.Minute)}

	in := Default()
	out, err := in.IntegrateToInstants(s0, targets, twoBodyRHS, stateAt(broker))
	if err != nil {
		t.Fatalf("IntegrateToInstants: %v", err)
	}
	if len(out) != len(targets) {
		t.Fatalf("expected %d states, got %d", len(targets), len(out))
	}
	for i, target := range targets {
		if !out[i].Instant().Equal(target) {
			t.Errorf("state %d: expected instant %s, got %s", i, target, out[i].Instant())
		}
	}
}

func TestIntegrateToConditionLocatesRadiusCrossing(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	broker, err := coordinates.NewBroker(coordinates.CartesianPosition, coordinates.CartesianVelocity)
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	// A radial-only "orbit" (no tangential velocity) above escape speed
	// (about 10.7 km/s at 7e6 m) so the position norm
	// increases monotonically and crosses a target radius exactly once.
	s0, err := coordinates.NewState(epoch, frame.GCRF, broker, []float64{7e6, 0, 0, 11000, 0, 0})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	condition := event.NewRadiusCondition("radius", 7.01e6, event.PositiveCrossing)

	in := Default()
	result, err := in.IntegrateToCondition(s0, epoch.Add(time.Hour), twoBodyRHS, stateAt(broker), condition)
	if err != nil {
		t.Fatalf("IntegrateToCondition: %v", err)
	}
	if !result.ConditionIsSatisfied {
		t.Fatal("expected the radius condition to fire")
	}
	if !result.RootSolverConverged {
		t.Error("expected the root solver to converge")
	}
	r, err := result.State.Extract(coordinates.CartesianPosition.Name())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	radius := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
	if math.Abs(radius-7.01e6) > 10 {
		t.Errorf("expected root near 7.01e6 m, got %f", radius)
	}
}

func TestIntegrateToConditionReachesMaxInstantWithoutCrossing(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0, broker := circularState(t, 7e6, epoch)
	condition := event.NewRadiusCondition("radius", 1e9, event.PositiveCrossing)

	in := Default()
	maxInstant := epoch.Add(10 * time.Minute)
	result, err := in.IntegrateToCondition(s0, maxInstant, twoBodyRHS, stateAt(broker), condition)
	if err != nil {
		t.Fatalf("IntegrateToCondition: %v", err)
	}
	if result.ConditionIsSatisfied {
		t.Fatal("condition should never fire for an unreachable radius target")
	}
	if !result.State.Instant().Equal(maxInstant) {
		t.Errorf("expected final state at maxInstant %s, got %s", maxInstant, result.State.Instant())
	}
}

func TestRK4FixedStepMatchesAdaptiveWithinTolerance(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0, broker := circularState(t, 7e6, epoch)
	target := epoch.Add(10 * time.Minute)

	adaptive := Default()
	adaptiveOut, err := adaptive.IntegrateToInstant(s0, target, twoBodyRHS, stateAt(broker))
	if err != nil {
		t.Fatalf("adaptive IntegrateToInstant: %v", err)
	}

	rk4 := Default()
	rk4.Method = RK4
	rk4.FixedStepSize = time.Second
	rk4Out, err := rk4.IntegrateToInstant(s0, target, twoBodyRHS, stateAt(broker))
	if err != nil {
		t.Fatalf("RK4 IntegrateToInstant: %v", err)
	}

	adaptiveR, _ := adaptiveOut.Extract(coordinates.CartesianPosition.Name())
	rk4R, _ := rk4Out.Extract(coordinates.CartesianPosition.Name())
	for i := 0; i < 3; i++ {
		if math.Abs(adaptiveR[i]-rk4R[i]) > 50 {
			t.Errorf("component %d: adaptive %f vs RK4 %f diverge by more than 50 m", i, adaptiveR[i], rk4R[i])
		}
	}
}

func TestTakeStepUnderflowsWhenToleranceIsUnattainable(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0, broker := circularState(t, 7e6, epoch)

	in := Default()
	in.AbsoluteTolerance = 0
	in.RelativeTolerance = 0 // impossible to satisfy with a floating-point step

	_, err := in.IntegrateToInstant(s0, epoch.Add(time.Minute), twoBodyRHS, stateAt(broker))
	if err == nil {
		t.Fatal("expected a step size underflow error")
	}
	if _, ok := err.(*StepSizeUnderflowError); !ok {
		t.Errorf("expected *StepSizeUnderflowError, got %T: %v", err, err)
	}
}

func TestRootSolverFailureIsReportedAlongsideResult(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	broker, err := coordinates.NewBroker(coordinates.CartesianPosition, coordinates.CartesianVelocity)
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	s0, err := coordinates.NewState(epoch, frame.GCRF, broker, []float64{7e6, 0, 0, 11000, 0, 0})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	condition := event.NewRadiusCondition("radius", 7.01e6, event.PositiveCrossing)

	in := Default()
	in.RootSolver = rootsolver.Solver{Tolerance: 1e-12, MaxIterations: 0}
	result, err := in.IntegrateToCondition(s0, epoch.Add(time.Hour), twoBodyRHS, stateAt(broker), condition)
	if err == nil {
		t.Fatal("expected a root-not-converged error with a zero-iteration-budget solver")
	}
	if _, ok := err.(*RootNotConvergedError); !ok {
		t.Fatalf("expected *RootNotConvergedError, got %T", err)
	}
	if !result.ConditionIsSatisfied {
		t.Error("expected the bracket to still be reported as satisfied even though the root did not converge")
	}
}
