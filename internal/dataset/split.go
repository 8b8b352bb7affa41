package dataset

import (
	"math"
	"math/rand"

	"github.com/gazelab/gazequad/internal/gaze"
)

// Split reserves the leading fraction of samples for validation. Both
// parts are non-empty when there are at least two samples and fraction > 0.
func Split(samples []gaze.Sample, fraction float64) (training, validation []gaze.Sample) {
	var n = int(math.Round(fraction * float64(len(samples))))
	if fraction > 0 && n == 0 && len(samples) > 1 {
		n = 1
	}
	if n >= len(samples) {
		n = len(samples) - 1
	}
	if n < 0 {
		n = 0
	}
	return samples[n:], samples[:n]
}

func Shuffle(rnd *rand.Rand, samples []gaze.Sample) {
	rnd.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})
}
