package estimation

import "math"

// classicalElements is the (a, e, i, raan, aop, trueAnomaly) sextuple used
// internally as the bridge between Cartesian state vectors and the
// Brouwer-Lyddane mean elements (package-private; callers only see the BLM
// broker's mean-anomaly representation).
//
// cartesianToClassical and classicalToCartesian are a direct port of the
// teacher's orbit.go Elements() (Vallado 4th ed. p.113 RV2COE) and
// NewOrbitFromOE (Vallado 4th ed. p.118 COE2RV), generalized from the
// teacher's cached-on-the-Orbit-struct style into pure functions so blm.go
// can call them repeatedly during the fixed-point iteration without an
// Orbit value to cache against.
type classicalElements struct {
	SemiMajorAxis  float64
	Eccentricity   float64
	Inclination    float64
	RAAN           float64
	AOP            float64
	TrueAnomaly    float64
}

const angleEpsilon = 1e-12
const eccentricityEpsilon = 1e-12

func cartesianToClassical(mu float64, r, v []float64) classicalElements {
	h := cross3(r, v)
	n := cross3([]float64{0, 0, 1}, h)
	speed := norm3(v)
	rNorm := norm3(r)
	xi := (speed*speed)/2 - mu/rNorm
	a := -mu / (2 * xi)

	eVec := make([]float64, 3)
	rdotv := dot3(r, v)
	for i := 0; i < 3; i++ {
		eVec[i] = ((speed*speed-mu/rNorm)*r[i] - rdotv*v[i]) / mu
	}
	e := norm3(eVec)
	if e < eccentricityEpsilon {
		e = eccentricityEpsilon
	}

	inc := math.Acos(clamp(h[2]/norm3(h), -1, 1))
	if inc < angleEpsilon {
		inc = angleEpsilon
	}

	nNorm := norm3(n)
	var raan float64
	if nNorm < angleEpsilon {
		raan = angleEpsilon
	} else {
		raan = math.Acos(clamp(n[0]/nNorm, -1, 1))
		if n[1] < 0 {
			raan = 2*math.Pi - raan
		}
	}

	var aop float64
	if nNorm < angleEpsilon {
		aop = 0
	} else {
		aop = math.Acos(clamp(dot3(n, eVec)/(nNorm*e), -1, 1))
		if math.IsNaN(aop) {
			aop = 0
		}
		if eVec[2] < 0 {
			aop = 2*math.Pi - aop
		}
	}

	cosNu := dot3(eVec, r) / (e * rNorm)
	nu := math.Acos(clamp(cosNu, -1, 1))
	if rdotv < 0 {
		nu = 2*math.Pi - nu
	}

	return classicalElements{
		SemiMajorAxis: a,
		Eccentricity:  e,
		Inclination:   math.Mod(inc, 2*math.Pi),
		RAAN:          math.Mod(raan, 2*math.Pi),
		AOP:           math.Mod(aop, 2*math.Pi),
		TrueAnomaly:   math.Mod(nu, 2*math.Pi),
	}
}

func classicalToCartesian(mu float64, coe classicalElements) (r, v []float64) {
	a, e, inc, raan, aop, nu := coe.SemiMajorAxis, coe.Eccentricity, coe.Inclination, coe.RAAN, coe.AOP, coe.TrueAnomaly
	p := a * (1 - e*e)
	muOverP := math.Sqrt(mu / p)
	sinNu, cosNu := math.Sincos(nu)
	rPQW := []float64{p * cosNu / (1 + e*cosNu), p * sinNu / (1 + e*cosNu), 0}
	vPQW := []float64{-muOverP * sinNu, muOverP * (e + cosNu), 0}
	r = rot313(-aop, -inc, -raan, rPQW)
	v = rot313(-aop, -inc, -raan, vPQW)
	return r, v
}

// meanAnomalyFromTrue solves Kepler's equation forward: true anomaly and
// eccentricity to eccentric, then mean anomaly (grounded on orbit.go's
// SinCosE, generalized to also return M = E - e sinE).
func meanAnomalyFromTrue(e, nu float64) float64 {
	sinNu, cosNu := math.Sincos(nu)
	denom := 1 + e*cosNu
	sinE := math.Sqrt(1-e*e) * sinNu / denom
	cosE := (e + cosNu) / denom
	ecc := math.Atan2(sinE, cosE)
	m := ecc - e*math.Sin(ecc)
	return math.Mod(m+2*math.Pi, 2*math.Pi)
}

// trueAnomalyFromMean inverts Kepler's equation by Newton iteration (the
// teacher has no such routine; standard textbook Newton solve on
// M = E - e sinE).
func trueAnomalyFromMean(e, m float64) float64 {
	m = math.Mod(m+2*math.Pi, 2*math.Pi)
	ecc := m
	if e > 0.8 {
		ecc = math.Pi
	}
	for iter := 0; iter < 50; iter++ {
		f := ecc - e*math.Sin(ecc) - m
		fPrime := 1 - e*math.Cos(ecc)
		delta := f / fPrime
		ecc -= delta
		if math.Abs(delta) < 1e-13 {
			break
		}
	}
	sinNu := math.Sqrt(1-e*e) * math.Sin(ecc) / (1 - e*math.Cos(ecc))
	cosNu := (math.Cos(ecc) - e) / (1 - e*math.Cos(ecc))
	return math.Mod(math.Atan2(sinNu, cosNu)+2*math.Pi, 2*math.Pi)
}

// rot313 applies the 3-1-3 Euler rotation (Schaub & Junkins convention),
// ported from the teacher's rotation.go Rot313Vec/R3R1R3.
func rot313(theta1, theta2, theta3 float64, vec []float64) []float64 {
	s1, c1 := math.Sincos(theta1)
	s2, c2 := math.Sincos(theta2)
	s3, c3 := math.Sincos(theta3)
	row := [3][3]float64{
		{c3*c1 - s3*c2*s1, c3*s1 + s3*c2*c1, s3 * s2},
		{-s3*c1 - c3*c2*s1, -s3*s1 + c3*c2*c1, c3 * s2},
		{s2 * s1, -s2 * c1, c2},
	}
	out := make([]float64, 3)
	for i := 0; i < 3; i++ {
		out[i] = row[i][0]*vec[0] + row[i][1]*vec[1] + row[i][2]*vec[2]
	}
	return out
}

func cross3(a, b []float64) []float64 {
	return []float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot3(a, b []float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm3(v []float64) float64 {
	return math.Sqrt(dot3(v, v))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
