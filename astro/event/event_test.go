package event

import (
	"math"
	"testing"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
)

const earthMu = 3.986004418e14

func stateAtRadius(t *testing.T, radius float64) *coordinates.State {
	t.Helper()
	broker, err := coordinates.NewBroker(coordinates.CartesianPosition, coordinates.CartesianVelocity)
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	s, err := coordinates.NewState(time.Now(), frame.GCRF, broker, []float64{radius, 0, 0, 0, 7.5e3, 0})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func TestRealConditionPositiveCrossing(t *testing.T) {
	c := NewRadiusCondition("radius", 6778137.0, PositiveCrossing)
	previous := stateAtRadius(t, 6700e3)
	current := stateAtRadius(t, 6800e3)

	ok, err := c.IsSatisfied(current, previous)
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if !ok {
		t.Error("expected a positive crossing of the radius target")
	}
}

func TestRealConditionNoCrossingWhenBothSamplesBelowTarget(t *testing.T) {
	c := NewRadiusCondition("radius", 6778137.0, PositiveCrossing)
	previous := stateAtRadius(t, 6700e3)
	current := stateAtRadius(t, 6750e3)

	ok, err := c.IsSatisfied(current, previous)
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if ok {
		t.Error("did not expect a crossing; both samples are below target")
	}
}

func TestAngularConditionWrapsAroundZero(t *testing.T) {
	// true anomaly crossing 0 (periapsis) going from just-below-2π to just-above-0.
	previous := stateAtRadius(t, 7000e3)
	current := stateAtRadius(t, 7000e3)

	// Function is driven by sample index rather than state content, since
	// this test only exercises the wrap-around arithmetic. IsSatisfied
	// evaluates `current` before `previous`, so index 0 is the current
	// sample (just after periapsis) and index 1 is the previous one (just
	// before, near 2π).
	samples := []float64{0.05, 6.2}
	i := 0
	c := &AngularCondition{
		ConditionName: "nu",
		Target:        0,
		Criterion:     PositiveCrossing,
		Function: func(s *coordinates.State) (float64, error) {
			v := samples[i]
			i++
			return v, nil
		},
	}
	ok, err := c.IsSatisfied(current, previous)
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if !ok {
		t.Error("expected a wrap-around positive crossing through 0")
	}
}

func TestAngularRangeConditionFiresOnlyOnEntering(t *testing.T) {
	c := &AngularRangeCondition{
		ConditionName: "range",
		Lower:         -0.1,
		Upper:         0.1,
	}
	// IsSatisfied evaluates `current` before `previous`.
	samples := []float64{0.05, 0.5}
	i := 0
	c.Function = func(s *coordinates.State) (float64, error) {
		v := samples[i]
		i++
		return v, nil
	}
	ok, err := c.IsSatisfied(stateAtRadius(t, 7000e3), stateAtRadius(t, 7000e3))
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if !ok {
		t.Error("expected entering transition into the arc to fire")
	}

	samples = []float64{0.05, 0.06}
	i = 0
	ok, err = c.IsSatisfied(stateAtRadius(t, 7000e3), stateAtRadius(t, 7000e3))
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if ok {
		t.Error("did not expect already-inside-the-arc samples to refire")
	}
}

func TestAndConditionRequiresAllChildren(t *testing.T) {
	always := &RealCondition{ConditionName: "always", Criterion: StrictlyPositive, Function: func(*coordinates.State) (float64, error) { return 1, nil }}
	never := &RealCondition{ConditionName: "never", Criterion: StrictlyPositive, Function: func(*coordinates.State) (float64, error) { return -1, nil }}
	and := &AndCondition{ConditionName: "and", Children: []Condition{always, never}}

	ok, err := and.IsSatisfied(stateAtRadius(t, 7000e3), stateAtRadius(t, 7000e3))
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if ok {
		t.Error("AND of a satisfied and unsatisfied child should not be satisfied")
	}

	or := &OrCondition{ConditionName: "or", Children: []Condition{always, never}}
	ok, err = or.IsSatisfied(stateAtRadius(t, 7000e3), stateAtRadius(t, 7000e3))
	if err != nil {
		t.Fatalf("IsSatisfied: %v", err)
	}
	if !ok {
		t.Error("OR of a satisfied and unsatisfied child should be satisfied")
	}
}

func TestSemiMajorAxisConditionOnCircularOrbit(t *testing.T) {
	const radius = 7000e3
	circularSpeed := math.Sqrt(earthMu / radius)

	broker, err := coordinates.NewBroker(coordinates.CartesianPosition, coordinates.CartesianVelocity)
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	s, err := coordinates.NewState(time.Now(), frame.GCRF, broker, []float64{radius, 0, 0, 0, circularSpeed, 0})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	c := NewSemiMajorAxisCondition("sma", radius, earthMu, AnyCrossing)
	v, err := c.Evaluate(s)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.Abs(v) > 1.0 {
		t.Errorf("expected near-zero semi-major-axis error for a circular orbit at the target radius, got %v", v)
	}
}
