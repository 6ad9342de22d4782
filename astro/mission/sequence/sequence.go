// Package sequence implements the ordered list of segments that forms a
// mission (spec §4.8 "Sequence"), generalizing spacecraft.go's
// Spacecraft.WayPoints chaining (each waypoint's ThrustDirection/Cleared
// consulted against one long-lived Orbit inside Accelerate) into an
// explicit solve that returns an immutable SequenceSolution.
package sequence

import (
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/event"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/mission/segment"
)

// Sequence is an ordered list of segments chained end to end (spec §4.8).
type Sequence struct {
	segments []*segment.Segment
}

// New builds an empty sequence.
func New() *Sequence { return &Sequence{} }

// AddCoast appends a coast segment (spec §6.2 "Sequence.addCoast").
func (s *Sequence) AddCoast(seg *segment.Segment) *Sequence {
	s.segments = append(s.segments, seg)
	return s
}

// AddManeuver appends a maneuver segment (spec §6.2 "Sequence.addManeuver").
func (s *Sequence) AddManeuver(seg *segment.Segment) *Sequence {
	s.segments = append(s.segments, seg)
	return s
}

// Segments returns the sequence's segments in execution order.
func (s *Sequence) Segments() []*segment.Segment { return append([]*segment.Segment{}, s.segments...) }

// Solution is the outcome of Solve/SolveToCondition (spec §3 "Sequence
// solution").
type Solution struct {
	Segments            []*segment.Solution
	States              []*coordinates.State // concatenated, skipping the duplicate handoff sample
	ExecutionIsComplete bool
}

// StartInstant/EndInstant are the first segment's start and the last
// segment's end (spec §4.8 invariant), or the zero time if the solution
// has no states.
func (s *Solution) StartInstant() time.Time {
	if len(s.States) == 0 {
		return time.Time{}
	}
	return s.States[0].Instant()
}

func (s *Solution) EndInstant() time.Time {
	if len(s.States) == 0 {
		return time.Time{}
	}
	return s.States[len(s.States)-1].Instant()
}

// Solve iterates the segment list `repetitions` times, chaining each
// segment's final state into the next segment's initial state (spec
// §4.8). It stops early, with ExecutionIsComplete=false, as soon as a
// segment's own max-duration bound is hit before its condition fires.
func (s *Sequence) Solve(initial *coordinates.State, maxDurationPerSegment time.Duration, repetitions int) (*Solution, error) {
	if len(s.segments) == 0 {
		return &Solution{ExecutionIsComplete: true}, nil
	}
	sol := &Solution{}
	current := initial
	for rep := 0; rep < repetitions; rep++ {
		for _, seg := range s.segments {
			segSol, err := seg.Solve(current, maxDurationPerSegment)
			if err != nil {
				return nil, err
			}
			sol.Segments = append(sol.Segments, segSol)
			sol.States = appendSkippingHandoff(sol.States, segSol.States)
			if len(segSol.States) == 0 {
				sol.ExecutionIsComplete = false
				return sol, nil
			}
			current = segSol.States[len(segSol.States)-1]
			if !segSol.ConditionIsSatisfied {
				sol.ExecutionIsComplete = false
				return sol, nil
			}
		}
	}
	sol.ExecutionIsComplete = true
	return sol, nil
}

// SolveToCondition loops the segment list, restarting from the first after
// the last, checking overallCondition between segments, and stops as soon
// as any segment's terminal state satisfies it or maxDuration elapses
// (spec §4.8 "a hybrid driver").
func (s *Sequence) SolveToCondition(initial *coordinates.State, overallCondition event.Condition, maxDuration time.Duration) (*Solution, error) {
	if len(s.segments) == 0 {
		return &Solution{ExecutionIsComplete: true}, nil
	}
	deadline := initial.Instant().Add(maxDuration)
	sol := &Solution{}
	current := initial
	idx := 0
	for {
		seg := s.segments[idx%len(s.segments)]
		remaining := deadline.Sub(current.Instant())
		if remaining <= 0 {
			sol.ExecutionIsComplete = false
			return sol, nil
		}
		segSol, err := seg.Solve(current, remaining)
		if err != nil {
			return nil, err
		}
		sol.Segments = append(sol.Segments, segSol)
		sol.States = appendSkippingHandoff(sol.States, segSol.States)
		if len(segSol.States) == 0 {
			sol.ExecutionIsComplete = false
			return sol, nil
		}
		terminal := segSol.States[len(segSol.States)-1]
		// `current` is still the segment's entry state here, i.e. the sample
		// immediately preceding `terminal`, which is what a crossing
		// criterion needs as its previous sample.
		satisfied, err := overallCondition.IsSatisfied(terminal, current)
		if err != nil {
			return nil, err
		}
		if satisfied {
			sol.ExecutionIsComplete = true
			return sol, nil
		}
		if !segSol.ConditionIsSatisfied && !terminal.Instant().Before(deadline) {
			sol.ExecutionIsComplete = false
			return sol, nil
		}
		// A segment whose condition is already satisfied at its entry state
		// advances nothing; looping it again would never progress.
		if !terminal.Instant().After(current.Instant()) {
			sol.ExecutionIsComplete = false
			return sol, nil
		}
		current = terminal
		idx++
	}
}

// appendSkippingHandoff concatenates a segment's states onto the running
// flat list, dropping the first sample when it duplicates the previous
// segment's last sample (spec §4.8 "skipping the duplicate handoff
// sample").
func appendSkippingHandoff(flat []*coordinates.State, segStates []*coordinates.State) []*coordinates.State {
	if len(flat) == 0 {
		return append(flat, segStates...)
	}
	if len(segStates) > 0 && segStates[0].Instant().Equal(flat[len(flat)-1].Instant()) {
		return append(flat, segStates[1:]...)
	}
	return append(flat, segStates...)
}
