package estimation

import (
	"fmt"
	"math"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
)

// SGP4Model is the TLE specialization's forward model (spec §4.10's second
// EstimationModel): propagate a Brouwer-Lyddane mean-element state (the
// BLM broker's six elements, plus B* when FitWithBStar) to a set of
// instants by secular J2 nodal/apsidal precession plus mean-motion-only
// drift, returning each propagated mean-element set as a state in the same
// BLM broker (no conversion back to Cartesian is made).
//
// original_source's SGP4.cpp (read for grounding) is itself a thin wrapper
// around an external libsgp4 library — the actual WGS72 perturbation
// theory (deep-space resonance, multi-term drag secular/periodic
// corrections, higher zonals) lives outside any file available to this
// port. SGP4Model is accordingly a deliberately reduced secular-only
// stand-in: J2 nodal regression and apsidal precession (the same
// closed-form rates used by the real SGP4 initialization and by
// BLMFromCartesian's theory step) plus, when B* is being estimated, a
// linear mean-motion decay scaled by B* in place of SGP4's full
// atmospheric density/drag model. It is not numerically equivalent to
// WGS72 SGP4, and is documented as such rather than claimed otherwise.
type SGP4Model struct {
	Mu               float64 // central body gravitational parameter, m^3/s^2
	J2               float64
	EquatorialRadius float64
	FitWithBStar     bool
}

// bstarDecayRate is the ad hoc proportionality constant between B* and
// fractional mean-motion growth per second, chosen only to give B*
// estimation something non-degenerate to act on; it is not derived from
// an atmospheric model.
const bstarDecayRate = 1e-4

// Propagate implements the Propagate function type, making SGP4Model
// usable as Estimate's forward model for the TLE specialization.
func (m *SGP4Model) Propagate(guess *coordinates.State, instants []time.Time) ([]*coordinates.State, error) {
	broker := guess.Broker()
	if !broker.Has(Inclination.Name()) || !broker.Has(MeanMotion.Name()) {
		return nil, fmt.Errorf("estimation: SGP4Model requires a BLM broker state (see NewBLMBroker)")
	}
	i, err := guess.Extract(Inclination.Name())
	if err != nil {
		return nil, err
	}
	raan, err := guess.Extract(RAAN.Name())
	if err != nil {
		return nil, err
	}
	e, err := guess.Extract(Eccentricity.Name())
	if err != nil {
		return nil, err
	}
	aop, err := guess.Extract(AOP.Name())
	if err != nil {
		return nil, err
	}
	meanAnomaly, err := guess.Extract(MeanAnomaly.Name())
	if err != nil {
		return nil, err
	}
	meanMotion, err := guess.Extract(MeanMotion.Name())
	if err != nil {
		return nil, err
	}
	var bstar float64
	if m.FitWithBStar && broker.Has(BStar.Name()) {
		v, err := guess.Extract(BStar.Name())
		if err != nil {
			return nil, err
		}
		bstar = v[0]
	}

	n0 := meanMotion[0]
	a := math.Cbrt(m.Mu / (n0 * n0))
	p := a * (1 - e[0]*e[0])
	cosi := math.Cos(i[0])

	raanDot := -1.5 * n0 * m.J2 * (m.EquatorialRadius * m.EquatorialRadius / (p * p)) * cosi
	aopDot := 0.75 * n0 * m.J2 * (m.EquatorialRadius * m.EquatorialRadius / (p * p)) * (5*cosi*cosi - 1)

	out := make([]*coordinates.State, len(instants))
	epoch := guess.Instant()
	for k, t := range instants {
		dt := t.Sub(epoch).Seconds()
		n := n0
		if m.FitWithBStar {
			n = n0 * (1 + bstarDecayRate*bstar*dt)
		}
		mean := []float64{
			i[0],
			wrap2Pi(raan[0] + raanDot*dt),
			e[0],
			wrap2Pi(aop[0] + aopDot*dt),
			wrap2Pi(meanAnomaly[0] + n*dt),
			n,
		}
		values := make(map[string][]float64, 7)
		values[Inclination.Name()] = mean[0:1]
		values[RAAN.Name()] = mean[1:2]
		values[Eccentricity.Name()] = mean[2:3]
		values[AOP.Name()] = mean[3:4]
		values[MeanAnomaly.Name()] = mean[4:5]
		values[MeanMotion.Name()] = mean[5:6]
		if m.FitWithBStar {
			values[BStar.Name()] = []float64{bstar}
		}
		vec, err := packBroker(broker, values)
		if err != nil {
			return nil, err
		}
		s, err := coordinates.NewState(t, guess.Frame(), broker, vec)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

func packBroker(broker *coordinates.Broker, values map[string][]float64) ([]float64, error) {
	vec := make([]float64, broker.Size())
	for _, s := range broker.Subsets() {
		off, ok := broker.Offset(s.Name())
		if !ok {
			return nil, fmt.Errorf("estimation: broker missing offset for %q", s.Name())
		}
		v, ok := values[s.Name()]
		if !ok {
			return nil, fmt.Errorf("estimation: no value supplied for subset %q", s.Name())
		}
		copy(vec[off:off+s.Size()], v)
	}
	return vec, nil
}

