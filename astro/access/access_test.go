package access

import (
	"math"
	"testing"
	"time"
)

func TestScanFindsAClosingAndOpeningInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)

	predicate := func(instant time.Time) (bool, float64, error) {
		frac := instant.Sub(start).Seconds() / end.Sub(start).Seconds()
		// A single bell-shaped pass, minimum range (closest approach) at the
		// interval's midpoint, matching spec §8 S6's expectation that the
		// closest-approach range is monotonically decreasing then increasing.
		rangeKm := 500 + 4500*math.Abs(frac-0.5)*2
		return rangeKm < 2000, rangeKm, nil
	}

	intervals, err := Scan(start, end, 361, predicate)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected exactly one access interval, got %d", len(intervals))
	}
	iv := intervals[0]
	if iv.StartIsPartial || iv.EndIsPartial {
		t.Error("expected a complete access with both endpoints strict crossings")
	}
	mid := start.Add(end.Sub(start) / 2)
	if diff := iv.ClosestApproach.Sub(mid); diff > 2*time.Minute || diff < -2*time.Minute {
		t.Errorf("closest approach %s too far from expected midpoint %s", iv.ClosestApproach, mid)
	}
}

func TestScanFlagsPartialAccessAtBoundary(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(1 * time.Hour)

	predicate := func(instant time.Time) (bool, float64, error) {
		return true, 100, nil
	}

	intervals, err := Scan(start, end, 10, predicate)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected one interval spanning the whole window, got %d", len(intervals))
	}
	if !intervals[0].StartIsPartial || !intervals[0].EndIsPartial {
		t.Error("expected both endpoints flagged partial when visibility never drops")
	}
}

func TestScanMarksUnobservableSamplesWithoutAborting(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(1 * time.Hour)

	calls := 0
	predicate := func(instant time.Time) (bool, float64, error) {
		calls++
		if calls == 3 {
			return false, 0, errUnobservable
		}
		return true, 100, nil
	}

	if _, err := Scan(start, end, 10, predicate); err != nil {
		t.Fatalf("Scan should tolerate a per-sample error, got: %v", err)
	}
}

var errUnobservable = sampleCountError{}

func TestRangeElAzMatchesOverheadGeometry(t *testing.T) {
	station := Station{Name: "equator", PositionECEF: []float64{6378.137, 0, 0}}
	overhead := []float64{6378.137 + 500, 0, 0}

	_, _, el, _ := rangeElAz(station, overhead)
	if math.Abs(el-90) > 1e-6 {
		t.Errorf("expected 90 degrees elevation directly overhead, got %f", el)
	}
}
