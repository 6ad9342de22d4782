// Command propagate drives one segment of the engine end to end: a
// circular orbit under two-body plus J2 gravity, coasted for one full
// period by default (see -revolutions). It exists to exercise astro/mission/segment's Solve path
// from the command line, the way the teacher's cmd/mission tool drives
// Spacecraft.Propagate.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/body"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/config"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/dynamics"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/event"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/export"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/integrator"
	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/mission/segment"
)

const earthMu = 3.986004418e14 // m^3/s^2

func main() {
	semiMajorAxis := flag.Float64("sma", 6.878137e6, "semi-major axis of the circular orbit, meters")
	revolutions := flag.Float64("revolutions", 1.0, "number of orbital periods to coast")
	csvName := flag.String("csv", "", "write the propagated states as <name>.csv in the configured output directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("propagate: loading configuration: %v", err)
	}

	earth := body.NewCelestial("Earth", 6.378137e6, &body.GravityModel{Mu: earthMu, J2: 1.08263e-3})
	env, err := body.NewEnvironment(earth)
	if err != nil {
		log.Fatalf("propagate: building environment: %v", err)
	}
	dyn, err := dynamics.FromEnvironment(env)
	if err != nil {
		log.Fatalf("propagate: building dynamics: %v", err)
	}

	broker, err := coordinates.NewBroker(coordinates.CartesianPosition, coordinates.CartesianVelocity, coordinates.Mass)
	if err != nil {
		log.Fatalf("propagate: building broker: %v", err)
	}
	sma := *semiMajorAxis
	reps := *revolutions
	circularSpeed := math.Sqrt(earthMu / sma)
	epoch := time.Now().UTC()
	initial, err := coordinates.NewState(epoch, frame.GCRF, broker, []float64{sma, 0, 0, 0, circularSpeed, 0, 100})
	if err != nil {
		log.Fatalf("propagate: building initial state: %v", err)
	}

	period := 2 * math.Pi * math.Sqrt(math.Pow(sma, 3)/earthMu)
	elapsedSince := func(epochFunc time.Time) func(*coordinates.State) float64 {
		return func(s *coordinates.State) float64 { return s.Instant().Sub(epochFunc).Seconds() }
	}
	condition := &event.InstantCondition{
		ConditionName: "one period elapsed",
		TargetSeconds: period * reps,
		EpochFunc:     elapsedSince(epoch),
	}

	in := integrator.Default()
	in.RelativeTolerance = cfg.IntegratorRelativeTolerance
	in.AbsoluteTolerance = cfg.IntegratorAbsoluteTolerance
	in.InitialStepSize = cfg.IntegratorInitialStepSize

	seg := segment.NewCoast("one-period-coast", condition, dyn, in).
		WithSystem(segment.System{Mass: 100, DragCoefficient: 2.2, SurfaceArea: 1.0})

	solution, err := seg.Solve(initial, time.Duration(period*reps*1.5)*time.Second)
	if err != nil {
		log.Fatalf("propagate: %v", err)
	}

	fmt.Fprintf(os.Stdout, "segment %q: %d states, condition satisfied = %t, duration = %s\n",
		solution.Name, len(solution.States), solution.ConditionIsSatisfied, solution.Duration())
	if len(solution.States) > 0 {
		last := solution.States[len(solution.States)-1]
		r, _ := last.Extract(coordinates.CartesianPosition.Name())
		fmt.Fprintf(os.Stdout, "final position (m): [%.3f %.3f %.3f]\n", r[0], r[1], r[2])
	}
	if *csvName != "" {
		path, err := export.StatesToFile(cfg.OutputDirectory, *csvName, solution.States, false)
		if err != nil {
			log.Fatalf("propagate: writing states: %v", err)
		}
		fmt.Fprintf(os.Stdout, "states written to %s\n", path)
	}
}
