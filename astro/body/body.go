// Package body provides the celestial-object collaborator (spec §6.1
// "Celestial"): gravitational/atmospheric model access and ephemeris
// position queries. Generalized from the teacher's celestial.go
// CelestialObject, which bundled these concerns into one struct with
// direct field access; here the optional models are made explicit so
// dynamics terms (package dynamics) can test for their presence the way
// spec §4.3 requires ("validates that the model is defined").
package body

import (
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/julian"
	"github.com/soniakeys/meeus/planetposition"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/frame"
)

// GravityModel evaluates a point-mass (optionally oblate) gravitational
// field. Higher-fidelity spherical-harmonic evaluation is an external
// collaborator per spec §1; this is the minimal concrete shape the
// dynamics terms need.
type GravityModel struct {
	Mu float64 // m^3/s^2
	J2 float64
	J3 float64
	J4 float64
}

// AtmosphericModel evaluates air density at an instant and position.
type AtmosphericModel struct {
	// SurfaceDensity and ScaleHeight parametrize a simple exponential
	// atmosphere: rho(h) = SurfaceDensity * exp(-h/ScaleHeight).
	SurfaceDensity float64 // kg/m^3
	ScaleHeight    float64 // m
}

// Density returns the atmospheric density at the given altitude above the
// body's equatorial radius, in kg/m^3.
func (a *AtmosphericModel) Density(altitudeMeters float64) float64 {
	if a == nil {
		return 0
	}
	return a.SurfaceDensity * math.Exp(-altitudeMeters/a.ScaleHeight)
}

// MagneticModel is consulted only by out-of-scope attitude dynamics; kept
// as a named, optional placeholder so Celestial's "exposes optional
// magnetic model" contract (spec §6.1) is representable.
type MagneticModel struct {
	ReferenceField float64 // Tesla, dipole placeholder
}

// Celestial is a gravitating, optionally atmosphere-bearing body.
type Celestial struct {
	Name            string
	EquatorialRadius float64 // meters
	Gravity         *GravityModel
	Atmosphere      *AtmosphericModel
	Magnetic        *MagneticModel
	IsCentralBody   bool

	ephemerisName string // VSOP87 planet key, empty for bodies without a loaded ephemeris
	planet        *planetposition.V87Planet
}

// NewCelestial constructs a non-central body with the given gravity model;
// AsCentralBody (or NewEnvironment, for its central argument) marks it
// central. Matches the teacher's package-level var-per-planet
// style (celestial.go) but as constructible values instead of globals, so
// more than one Environment (spec §5) can exist concurrently.
func NewCelestial(name string, equatorialRadius float64, gravity *GravityModel) *Celestial {
	return &Celestial{Name: name, EquatorialRadius: equatorialRadius, Gravity: gravity}
}

// WithAtmosphere attaches an atmospheric model and returns the body for chaining.
func (c *Celestial) WithAtmosphere(a *AtmosphericModel) *Celestial {
	c.Atmosphere = a
	return c
}

// AsCentralBody marks the body as its environment's central body and
// returns it for chaining. NewEnvironment does this for its central
// argument; the method exists for callers assembling dynamics by hand.
func (c *Celestial) AsCentralBody() *Celestial {
	c.IsCentralBody = true
	return c
}

// WithEphemeris attaches the VSOP87 planet index used by PositionAt, mirroring
// celestial.go's lazy planetposition.LoadPlanetPath.
func (c *Celestial) WithEphemeris(vsopDir string, vsopIndex int) error {
	planet, err := planetposition.LoadPlanetPath(vsopIndex, vsopDir)
	if err != nil {
		return err
	}
	c.planet = planet
	return nil
}

// GM returns the body's gravitational parameter, or 0 if ungravitating.
func (c *Celestial) GM() float64 {
	if c.Gravity == nil {
		return 0
	}
	return c.Gravity.Mu
}

// PositionAt returns the body's heliocentric position at the given instant,
// in meters, via the loaded VSOP87 series. Generalizes celestial.go's
// HelioOrbit to a position-only query (spec §6.1 "position-at-instant
// query"); the Sun itself is the origin.
func (c *Celestial) PositionAt(instant time.Time) ([]float64, error) {
	if c.Name == "Sun" {
		return []float64{0, 0, 0}, nil
	}
	if c.planet == nil {
		return nil, errUndefinedEphemeris(c.Name)
	}
	const au = 1.49597870700e11 // meters
	l, b, r := c.planet.Position2000(julian.TimeToJD(instant))
	r *= au
	sB, cB := math.Sincos(b.Rad())
	sL, cL := math.Sincos(l.Rad())
	return []float64{r * cB * cL, r * cB * sL, r * sB}, nil
}

// Environment groups the celestial bodies one propagation runs against: a
// central body plus any perturbing others. Environments are cheap to
// construct and hold only shared-immutable model references, so building
// one per concurrent propagation is the supported pattern (spec §5); the
// source's mutable per-environment "current instant" is gone entirely, the
// instant being threaded through every field evaluation instead.
type Environment struct {
	Central *Celestial
	Others  []*Celestial

	// BodyFixedFrame is the frame the central body's atmosphere co-rotates
	// with (frame.ITRF for Earth). The zero value models a non-rotating
	// atmosphere.
	BodyFixedFrame frame.Frame
}

// NewEnvironment builds an environment around `central`, marking it as the
// central body. The perturbing others must not include the central body.
func NewEnvironment(central *Celestial, others ...*Celestial) (*Environment, error) {
	if central == nil {
		return nil, fmt.Errorf("body: environment requires a central body")
	}
	for _, o := range others {
		if o == central || o.Name == central.Name {
			return nil, fmt.Errorf("body: %s cannot be both the central body and a perturbing body", central.Name)
		}
	}
	central.IsCentralBody = true
	return &Environment{Central: central, Others: others}, nil
}

// WithBodyFixedFrame sets the atmosphere's co-rotation frame and returns
// the environment for chaining.
func (e *Environment) WithBodyFixedFrame(f frame.Frame) *Environment {
	e.BodyFixedFrame = f
	return e
}

func errUndefinedEphemeris(name string) error {
	return &undefinedEphemerisError{name}
}

type undefinedEphemerisError struct{ name string }

func (e *undefinedEphemerisError) Error() string {
	return "body: no ephemeris loaded for " + e.name
}
