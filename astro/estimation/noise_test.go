package estimation

import (
	"math"
	"testing"
	"time"
)

func TestNoisyReferencesPerturbsWithinSigma(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	truth := buildState(t, []float64{7e6, 0, 0, 0, 7546, 0}, epoch)
	sigma := []float64{10, 10, 10, 0.01, 0.01, 0.01}

	noisy, err := NoisyReferences([]Reference{{State: truth, Sigma: sigma}}, 42)
	if err != nil {
		t.Fatalf("NoisyReferences: %v", err)
	}
	got := noisy[0].State.Vector()
	want := truth.Vector()
	changed := false
	for i := range got {
		d := math.Abs(got[i] - want[i])
		if d > 0 {
			changed = true
		}
		if d > 8*sigma[i] {
			t.Errorf("component %d perturbed by %g, far outside sigma %g", i, d, sigma[i])
		}
	}
	if !changed {
		t.Error("expected the reference to be perturbed")
	}
	if noisy[0].Sigma == nil {
		t.Error("expected the sigmas to carry through to the perturbed reference")
	}
}

func TestNoisyReferencesPassesThroughUnweighted(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	truth := buildState(t, []float64{7e6, 0, 0, 0, 7546, 0}, epoch)

	noisy, err := NoisyReferences([]Reference{{State: truth}}, 1)
	if err != nil {
		t.Fatalf("NoisyReferences: %v", err)
	}
	got := noisy[0].State.Vector()
	for i, want := range truth.Vector() {
		if got[i] != want {
			t.Fatalf("component %d changed without a sigma: got %f, want %f", i, got[i], want)
		}
	}
}

func TestNoisyReferencesRejectsShortSigma(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	truth := buildState(t, []float64{7e6, 0, 0, 0, 7546, 0}, epoch)
	if _, err := NoisyReferences([]Reference{{State: truth, Sigma: []float64{10}}}, 1); err == nil {
		t.Fatal("expected an error for a sigma vector shorter than the state")
	}
}
