package event

import (
	"math"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/guidance"
)

// Convenience constructors for conditions over classical orbital elements
// and radius, supplementing spec.md's distillation with the
// COECondition family original_source/.../EventCondition/COECondition.cpp
// exposes, grounded on orbit.go's Elements() accessors. Each extracts
// Cartesian position/velocity out of the state and, where needed, derives
// elements via guidance.ElementsFromStateVectors (the same RV2COE the
// guidance package's QLaw uses).

func extractRV(state *coordinates.State) (r, v []float64, err error) {
	r, err = state.Extract(coordinates.CartesianPosition.Name())
	if err != nil {
		return nil, nil, err
	}
	v, err = state.Extract(coordinates.CartesianVelocity.Name())
	if err != nil {
		return nil, nil, err
	}
	return r, v, nil
}

// NewRadiusCondition fires on the position norm crossing target, e.g. the
// "radius crosses 6778.137 km upward" scenario (spec §8 S3).
func NewRadiusCondition(name string, target float64, criterion Criterion) *RealCondition {
	return &RealCondition{
		ConditionName: name,
		Target:        target,
		Criterion:     criterion,
		Function: func(state *coordinates.State) (float64, error) {
			r, err := state.Extract(coordinates.CartesianPosition.Name())
			if err != nil {
				return 0, err
			}
			return math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2]), nil
		},
	}
}

// NewSemiMajorAxisCondition fires on semi-major axis crossing target.
func NewSemiMajorAxisCondition(name string, target, mu float64, criterion Criterion) *RealCondition {
	return &RealCondition{
		ConditionName: name,
		Target:        target,
		Criterion:     criterion,
		Function: func(state *coordinates.State) (float64, error) {
			r, v, err := extractRV(state)
			if err != nil {
				return 0, err
			}
			el, err := guidance.ElementsFromStateVectors(r, v, mu)
			if err != nil {
				return 0, err
			}
			return el.SemiMajorAxis(), nil
		},
	}
}

// NewEccentricityCondition fires on eccentricity crossing target.
func NewEccentricityCondition(name string, target, mu float64, criterion Criterion) *RealCondition {
	return &RealCondition{
		ConditionName: name,
		Target:        target,
		Criterion:     criterion,
		Function: func(state *coordinates.State) (float64, error) {
			r, v, err := extractRV(state)
			if err != nil {
				return 0, err
			}
			el, err := guidance.ElementsFromStateVectors(r, v, mu)
			if err != nil {
				return 0, err
			}
			return el.Eccentricity(), nil
		},
	}
}

// NewInclinationCondition fires on inclination (radians, [0, π]) crossing target.
func NewInclinationCondition(name string, target, mu float64, criterion Criterion) *RealCondition {
	return &RealCondition{
		ConditionName: name,
		Target:        target,
		Criterion:     criterion,
		Function: func(state *coordinates.State) (float64, error) {
			r, v, err := extractRV(state)
			if err != nil {
				return 0, err
			}
			el, err := guidance.ElementsFromStateVectors(r, v, mu)
			if err != nil {
				return 0, err
			}
			return el.Inclination(), nil
		},
	}
}

// NewRAANCondition fires on right ascension of ascending node crossing target.
func NewRAANCondition(name string, target, mu float64, criterion Criterion) *AngularCondition {
	return &AngularCondition{
		ConditionName: name,
		Target:        target,
		Criterion:     criterion,
		Function: func(state *coordinates.State) (float64, error) {
			r, v, err := extractRV(state)
			if err != nil {
				return 0, err
			}
			el, err := guidance.ElementsFromStateVectors(r, v, mu)
			if err != nil {
				return 0, err
			}
			return el.RAAN(), nil
		},
	}
}

// NewArgumentOfPerigeeCondition fires on argument of perigee crossing target.
func NewArgumentOfPerigeeCondition(name string, target, mu float64, criterion Criterion) *AngularCondition {
	return &AngularCondition{
		ConditionName: name,
		Target:        target,
		Criterion:     criterion,
		Function: func(state *coordinates.State) (float64, error) {
			r, v, err := extractRV(state)
			if err != nil {
				return 0, err
			}
			el, err := guidance.ElementsFromStateVectors(r, v, mu)
			if err != nil {
				return 0, err
			}
			return el.ArgOfPerigee(), nil
		},
	}
}

// NewTrueAnomalyCondition fires on true anomaly crossing target, e.g. the
// "coast until true anomaly = 0 rad (periapsis)" scenario (spec §8 S4).
func NewTrueAnomalyCondition(name string, target, mu float64, criterion Criterion) *AngularCondition {
	return &AngularCondition{
		ConditionName: name,
		Target:        target,
		Criterion:     criterion,
		Function: func(state *coordinates.State) (float64, error) {
			r, v, err := extractRV(state)
			if err != nil {
				return 0, err
			}
			el, err := guidance.ElementsFromStateVectors(r, v, mu)
			if err != nil {
				return 0, err
			}
			return el.TrueAnomaly(), nil
		},
	}
}
