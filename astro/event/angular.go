package event

import "github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"

// AngularCondition is identical in spirit to RealCondition but both its
// target and function values are reduced modulo 2π before distance is
// computed, matching spec §4.4's angular condition variant. Grounded on
// orbit.go's MeanAnomaly/angleε-style wrapped comparisons.
type AngularCondition struct {
	ConditionName string
	Target        float64 // radians
	Criterion     Criterion
	Function      func(*coordinates.State) (float64, error)
}

func (a *AngularCondition) Name() string { return a.ConditionName }

// Evaluate returns the shortest signed angular distance from Function's
// value to Target, in [-π, π).
func (a *AngularCondition) Evaluate(state *coordinates.State) (float64, error) {
	v, err := a.Function(state)
	if err != nil {
		return 0, err
	}
	return angularDistance(v, a.Target), nil
}

func (a *AngularCondition) IsSatisfied(current, previous *coordinates.State) (bool, error) {
	cur, err := a.Evaluate(current)
	if err != nil {
		return false, err
	}
	if a.Criterion == StrictlyPositive || a.Criterion == StrictlyNegative {
		return crossed(0, cur, a.Criterion)
	}
	prev, err := a.Evaluate(previous)
	if err != nil {
		return false, err
	}
	return crossed(prev, cur, a.Criterion)
}

func angularDistance(value, target float64) float64 {
	d := wrap2Pi(value) - wrap2Pi(target)
	return wrap2Pi(d+3.141592653589793) - 3.141592653589793
}

// AngularRangeCondition succeeds when Function's wrapped value lies within
// the closed arc [Lower, Upper] (accounting for wrap-around when Lower >
// Upper) and did not lie there in the previous sample — spec §4.4's
// WithinRange, which "fires on the entering transition".
type AngularRangeCondition struct {
	ConditionName string
	Lower, Upper  float64 // radians
	Function      func(*coordinates.State) (float64, error)
}

func (a *AngularRangeCondition) Name() string { return a.ConditionName }

func (a *AngularRangeCondition) inArc(v float64) bool {
	v = wrap2Pi(v)
	lower, upper := wrap2Pi(a.Lower), wrap2Pi(a.Upper)
	if lower <= upper {
		return v >= lower && v <= upper
	}
	return v >= lower || v <= upper
}

// Evaluate returns a positive value when inside the arc and a negative
// value otherwise, so AngularRangeCondition still composes with AND/OR's
// min/max sign combination for joint root-bracketing.
func (a *AngularRangeCondition) Evaluate(state *coordinates.State) (float64, error) {
	v, err := a.Function(state)
	if err != nil {
		return 0, err
	}
	if a.inArc(v) {
		return 1, nil
	}
	return -1, nil
}

func (a *AngularRangeCondition) IsSatisfied(current, previous *coordinates.State) (bool, error) {
	cur, err := a.Function(current)
	if err != nil {
		return false, err
	}
	prev, err := a.Function(previous)
	if err != nil {
		return false, err
	}
	return a.inArc(cur) && !a.inArc(prev), nil
}
