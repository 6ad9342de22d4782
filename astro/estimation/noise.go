package estimation

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
)

// NoisyReferences draws zero-mean Gaussian noise per reference, with the
// reference's own per-coordinate sigmas as the standard deviations, and
// returns perturbed copies. References without sigmas pass through
// unchanged. Mirrors the teacher's station noise: station.go builds a
// distmv.Normal per measurement channel at construction and adds a draw to
// the true value inside PerformMeasurement; here the channel set is the
// reference state's full coordinate vector instead of range/range-rate.
//
// Used to manufacture realistic observation sets for an Estimate run from
// a truth propagation, the way spec §8 S5's scenario seeds its references.
func NoisyReferences(references []Reference, seed uint64) ([]Reference, error) {
	src := rand.NewSource(seed)
	out := make([]Reference, len(references))
	for i, ref := range references {
		if ref.Sigma == nil {
			out[i] = ref
			continue
		}
		n := ref.State.Broker().Size()
		if len(ref.Sigma) != n {
			return nil, fmt.Errorf("estimation: reference %d sigma length %d does not match state size %d", i, len(ref.Sigma), n)
		}
		covariance := make([]float64, n*n)
		for k := 0; k < n; k++ {
			covariance[k*n+k] = ref.Sigma[k] * ref.Sigma[k]
			if ref.Sigma[k] == 0 {
				// distmv rejects a singular covariance; a zero sigma means
				// "exact", so give it a vanishing variance instead.
				covariance[k*n+k] = 1e-30
			}
		}
		normal, ok := distmv.NewNormal(make([]float64, n), mat.NewSymDense(n, covariance), src)
		if !ok {
			return nil, fmt.Errorf("estimation: reference %d sigmas do not form a valid covariance", i)
		}
		draw := normal.Rand(nil)
		perturbed := ref.State.Vector()
		for k := 0; k < n; k++ {
			perturbed[k] += draw[k]
		}
		state, err := coordinates.NewState(ref.State.Instant(), ref.State.Frame(), ref.State.Broker(), perturbed)
		if err != nil {
			return nil, err
		}
		out[i] = Reference{State: state, Sigma: ref.Sigma}
	}
	return out, nil
}
