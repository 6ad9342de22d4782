package event

import (
	"math"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
)

// AndCondition is satisfied iff every child condition is satisfied (spec
// §4.4 "AND satisfaction is the boolean AND of children"). Its Evaluate
// combines children via min, so a single continuous sign function exists
// for the root solver to bracket ("joint root-bracketing on the combined
// sign function"): the combined value is positive iff every child's value
// is positive.
type AndCondition struct {
	ConditionName string
	Children      []Condition
}

func (a *AndCondition) Name() string { return a.ConditionName }

func (a *AndCondition) Evaluate(state *coordinates.State) (float64, error) {
	min := math.Inf(1)
	for _, c := range a.Children {
		v, err := c.Evaluate(state)
		if err != nil {
			return 0, err
		}
		if v < min {
			min = v
		}
	}
	return min, nil
}

func (a *AndCondition) IsSatisfied(current, previous *coordinates.State) (bool, error) {
	for _, c := range a.Children {
		ok, err := c.IsSatisfied(current, previous)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// OrCondition is the dual of AndCondition: satisfied iff any child is, and
// its Evaluate combines children via max.
type OrCondition struct {
	ConditionName string
	Children      []Condition
}

func (o *OrCondition) Name() string { return o.ConditionName }

func (o *OrCondition) Evaluate(state *coordinates.State) (float64, error) {
	max := math.Inf(-1)
	for _, c := range o.Children {
		v, err := c.Evaluate(state)
		if err != nil {
			return 0, err
		}
		if v > max {
			max = v
		}
	}
	return max, nil
}

func (o *OrCondition) IsSatisfied(current, previous *coordinates.State) (bool, error) {
	for _, c := range o.Children {
		ok, err := c.IsSatisfied(current, previous)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
