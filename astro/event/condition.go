// Package event implements the predicate/crossing-detector conditions that
// terminate a numerical integration (spec §4.4 "Event condition").
//
// New relative to the teacher: waypoints.go's Waypoint.Cleared() is a
// bespoke boolean per waypoint type, not a composable predicate over an
// arbitrary real-valued function of state. This package generalizes that
// into a small condition algebra grounded on orbit.go's epsilon-style
// comparisons and waypoints.go's ReachDistance/ToElliptical threshold
// checks.
package event

import (
	"fmt"
	"math"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
)

// Condition is a predicate/crossing-detector over pairs of states.
// Evaluate returns the signed distance to the target; IsSatisfied decides,
// from the current and previous sample's evaluation, whether the
// condition's criterion has fired (spec §4.4).
type Condition interface {
	Name() string
	Evaluate(state *coordinates.State) (float64, error)
	IsSatisfied(current, previous *coordinates.State) (bool, error)
}

// Criterion selects how Evaluate's sign/crossing behavior is interpreted.
type Criterion int

const (
	// StrictlyPositive is satisfied whenever Evaluate(current) > 0.
	StrictlyPositive Criterion = iota
	// StrictlyNegative is satisfied whenever Evaluate(current) < 0.
	StrictlyNegative
	// AnyCrossing fires on a sign change between the previous and current sample.
	AnyCrossing
	// PositiveCrossing fires only on a negative-to-positive sign change.
	PositiveCrossing
	// NegativeCrossing fires only on a positive-to-negative sign change.
	NegativeCrossing
)

func crossed(prev, cur float64, c Criterion) (bool, error) {
	switch c {
	case StrictlyPositive:
		return cur > 0, nil
	case StrictlyNegative:
		return cur < 0, nil
	case AnyCrossing:
		return (prev <= 0 && cur > 0) || (prev >= 0 && cur < 0), nil
	case PositiveCrossing:
		return prev <= 0 && cur > 0, nil
	case NegativeCrossing:
		return prev >= 0 && cur < 0, nil
	default:
		return false, fmt.Errorf("event: unknown criterion %d", c)
	}
}

// RealCondition targets a value + criterion over a caller-supplied scalar
// function of state, matching spec §4.4's real condition variant.
// Grounded on waypoints.go's ReachDistance, which compares a single scalar
// (distance) against a target with a fixed sense.
type RealCondition struct {
	ConditionName string
	Target        float64
	Criterion     Criterion
	Function      func(*coordinates.State) (float64, error)
}

func (r *RealCondition) Name() string { return r.ConditionName }

func (r *RealCondition) Evaluate(state *coordinates.State) (float64, error) {
	v, err := r.Function(state)
	if err != nil {
		return 0, err
	}
	return v - r.Target, nil
}

func (r *RealCondition) IsSatisfied(current, previous *coordinates.State) (bool, error) {
	cur, err := r.Evaluate(current)
	if err != nil {
		return false, err
	}
	if r.Criterion == StrictlyPositive || r.Criterion == StrictlyNegative {
		return crossed(0, cur, r.Criterion)
	}
	prev, err := r.Evaluate(previous)
	if err != nil {
		return false, err
	}
	return crossed(prev, cur, r.Criterion)
}

// InstantCondition fires when state.Instant() reaches a target instant,
// spec §4.4's "real-valued function is (state.instant - targetInstant) in
// seconds". Used as a segment's termination condition to end it after a
// fixed elapsed time.
type InstantCondition struct {
	ConditionName string
	TargetSeconds float64 // seconds since a caller-defined epoch (typically the segment's start instant)
	EpochFunc     func(*coordinates.State) float64
}

func (i *InstantCondition) Name() string { return i.ConditionName }

func (i *InstantCondition) Evaluate(state *coordinates.State) (float64, error) {
	return i.EpochFunc(state) - i.TargetSeconds, nil
}

func (i *InstantCondition) IsSatisfied(current, previous *coordinates.State) (bool, error) {
	cur, err := i.Evaluate(current)
	if err != nil {
		return false, err
	}
	prev, err := i.Evaluate(previous)
	if err != nil {
		return false, err
	}
	c, err := crossed(prev, cur, PositiveCrossing)
	if err != nil {
		return false, err
	}
	return c || cur == 0, nil
}

func wrap2Pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}
