package ml

import (
	"math"
	"math/rand"
)

// InitXavier fills data from the Glorot uniform distribution
// U(-limit, limit), limit = sqrt(6 / (fanIn + fanOut)).
func InitXavier(rnd *rand.Rand, data []float64, fanIn, fanOut int) {
	var limit = math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range data {
		data[i] = limit * (2*rnd.Float64() - 1)
	}
}
