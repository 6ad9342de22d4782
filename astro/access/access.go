// Package access implements the geometric contact-interval scan (spec
// §4.11): given two trajectories (or a trajectory and a fixed ground
// location) and a search interval, partition it on a uniform time grid,
// evaluate a visibility predicate at each sample, and collapse contiguous
// true runs into access intervals with a spline-refined (Akima)
// closest-approach instant.
//
// Grounded on station.go's Station.RangeElAz (range/elevation/azimuth of an
// ECEF position relative to a ground station) and PerformMeasurement's
// visibility boolean (el >= s.Elevation), generalized from "one station,
// one instant" to an interval scan over an arbitrary visibility predicate.
// The teacher's distmv-based measurement-noise sampling is dropped here: a
// geometric access query has no measurement noise to inject.
package access

import (
	"math"
	"time"

	"gonum.org/v1/gonum/interp"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
)

// Predicate reports whether a point of interest is visible at the given
// instant, along with a range used for closest-approach refinement (spec
// §4.11 "the sample with minimum range").
type Predicate func(instant time.Time) (visible bool, rangeKm float64, err error)

// Interval is one contiguous access window (spec §4.11 "contiguous true
// runs become access intervals").
type Interval struct {
	Start, End             time.Time
	ClosestApproach        time.Time
	ClosestApproachRange   float64
	StartIsPartial         bool // true if Start == search interval's start (spec "partial accesses ... flagged")
	EndIsPartial           bool // true if End == search interval's end
}

// Scan partitions [start, end] into `samples` uniform steps, evaluates
// predicate at each, and returns the resulting access intervals (spec
// §4.11). A predicate error marks that sample unobservable rather than
// aborting the scan (spec §7 "Access scanning tolerates per-sample
// evaluation errors by marking the sample unobservable and continuing").
func Scan(start, end time.Time, samples int, predicate Predicate) ([]Interval, error) {
	if samples < 2 {
		return nil, errInvalidSampleCount
	}
	step := end.Sub(start) / time.Duration(samples-1)

	instants := make([]time.Time, samples)
	visible := make([]bool, samples)
	ranges := make([]float64, samples)
	observable := make([]bool, samples)
	for i := 0; i < samples; i++ {
		t := start.Add(time.Duration(i) * step)
		instants[i] = t
		v, r, err := predicate(t)
		if err != nil {
			observable[i] = false
			continue
		}
		observable[i] = true
		visible[i] = v
		ranges[i] = r
	}

	var intervals []Interval
	i := 0
	for i < samples {
		if !observable[i] || !visible[i] {
			i++
			continue
		}
		runStart := i
		for i < samples && observable[i] && visible[i] {
			i++
		}
		runEnd := i - 1

		iv := Interval{
			Start:          instants[runStart],
			End:            instants[runEnd],
			StartIsPartial: runStart == 0,
			EndIsPartial:   runEnd == samples-1,
		}
		closest, closestRange := refineClosestApproach(instants[runStart:runEnd+1], ranges[runStart:runEnd+1])
		iv.ClosestApproach = closest
		iv.ClosestApproachRange = closestRange
		intervals = append(intervals, iv)
	}
	return intervals, nil
}

var errInvalidSampleCount = sampleCountError{}

type sampleCountError struct{}

func (sampleCountError) Error() string { return "access: samples must be at least 2" }

// refineClosestApproach finds the minimum-range sample within a run and
// refines it by fitting a cubic spline through it and its neighbors, then
// densely resampling between the two samples bracketing the minimum (spec
// §4.11 "refined by parabolic interpolation"; an Akima cubic spline is used
// here in place of a bare parabola since it is already available via
// gonum.org/v1/gonum/interp and degrades to the same local behavior around
// an isolated minimum). Falls back to the raw minimum sample at a run's
// edge where no neighbor exists on one side. Ties resolve to the earliest
// instant (spec §4.11 "Tie-break: earliest instant").
func refineClosestApproach(instants []time.Time, ranges []float64) (time.Time, float64) {
	minIdx := 0
	for i := 1; i < len(ranges); i++ {
		if ranges[i] < ranges[minIdx] {
			minIdx = i
		}
	}
	if minIdx == 0 || minIdx == len(ranges)-1 {
		return instants[minIdx], ranges[minIdx]
	}

	lo := minIdx - 1
	hi := minIdx + 1
	if lo-1 >= 0 {
		lo--
	}
	if hi+1 < len(ranges) {
		hi++
	}
	x := make([]float64, hi-lo+1)
	y := make([]float64, hi-lo+1)
	for i := lo; i <= hi; i++ {
		x[i-lo] = float64(i - minIdx)
		y[i-lo] = ranges[i]
	}

	var spline interp.AkimaSpline
	if err := spline.Fit(x, y); err != nil {
		return instants[minIdx], ranges[minIdx]
	}

	bestOffset := 0.0
	bestRange := ranges[minIdx]
	const subSamples = 200
	for s := 0; s <= subSamples; s++ {
		t := -1 + 2*float64(s)/subSamples
		v := spline.Predict(t)
		if v < bestRange {
			bestRange = v
			bestOffset = t
		}
	}

	var dt time.Duration
	if bestOffset >= 0 {
		dt = instants[minIdx+1].Sub(instants[minIdx])
	} else {
		dt = instants[minIdx].Sub(instants[minIdx-1])
	}
	refinedInstant := instants[minIdx].Add(time.Duration(bestOffset * float64(dt)))
	return refinedInstant, bestRange
}

// AERPredicate builds a Predicate from a ground station's ECEF position and
// a trajectory that reports its ECEF position/range at an instant,
// thresholded by a minimum elevation (spec §4.11 "AER range/elevation
// window"), mirroring station.go's RangeElAz/PerformMeasurement pair.
type AERPredicate struct {
	Station          Station
	PositionECEF     func(instant time.Time) ([]float64, error)
	MinimumElevation float64 // degrees
}

// Station is a ground location in ECEF, grounded on station.go's Station
// (R []float64, LatΦ, Longθ kept in radians).
type Station struct {
	Name               string
	PositionECEF       []float64 // km
	LatitudeRadians    float64
	LongitudeRadians   float64
}

// Predicate adapts this AER window into the Predicate shape Scan expects.
func (a AERPredicate) Predicate() Predicate {
	return func(instant time.Time) (bool, float64, error) {
		rECEF, err := a.PositionECEF(instant)
		if err != nil {
			return false, 0, err
		}
		rho, _, el, _ := rangeElAz(a.Station, rECEF)
		return el >= a.MinimumElevation, rho, nil
	}
}

// rangeElAz returns the range, elevation, and azimuth (degrees) of an ECEF
// position relative to the station, a direct port of station.go's
// RangeElAz.
func rangeElAz(s Station, rECEF []float64) (rho float64, rhoECEF [3]float64, el, az float64) {
	var diff [3]float64
	for i := 0; i < 3; i++ {
		diff[i] = rECEF[i] - s.PositionECEF[i]
		rho += diff[i] * diff[i]
	}
	rho = math.Sqrt(rho)

	sez := rotateZ(s.LongitudeRadians, diff)
	sez = rotateY(math.Pi/2-s.LatitudeRadians, sez)
	el = math.Asin(sez[2]/rho) * (180 / math.Pi)
	az = math.Mod(2*math.Pi+math.Atan2(sez[1], -sez[0]), 2*math.Pi) * (180 / math.Pi)
	return rho, sez, el, az
}

func rotateZ(theta float64, v [3]float64) [3]float64 {
	c, s := math.Cos(theta), math.Sin(theta)
	return [3]float64{c*v[0] + s*v[1], -s*v[0] + c*v[1], v[2]}
}

func rotateY(theta float64, v [3]float64) [3]float64 {
	c, s := math.Cos(theta), math.Sin(theta)
	return [3]float64{c*v[0] - s*v[2], v[1], s*v[0] + c*v[2]}
}

// NewGroundStationGenerator builds an AERPredicate.Predicate from a
// trajectory expressed as coordinate states in an Earth-fixed frame,
// matching original_source's Access/Generator.cpp convenience entry point
// (spec's "Supplemented features").
func NewGroundStationGenerator(station Station, minimumElevation float64, statesByInstant func(instant time.Time) (*coordinates.State, error)) Predicate {
	pred := AERPredicate{
		Station:          station,
		MinimumElevation: minimumElevation,
		PositionECEF: func(instant time.Time) ([]float64, error) {
			s, err := statesByInstant(instant)
			if err != nil {
				return nil, err
			}
			return s.Extract(coordinates.CartesianPosition.Name())
		},
	}
	return pred.Predicate()
}

