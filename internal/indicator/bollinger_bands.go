package indicator

import (
	"math"

	"github.com/moznion/go-optional"
)

// BollingerBands computes the middle band (SMA over period) and the upper and
// lower bands at mid ± k * population standard deviation of the trailing
// window. Variance divides by period, not period-1.
func BollingerBands(values []float64, period int, k float64) (mid, upper, lower Series) {
	mid = SimpleMovingAverage(values, period)
	upper = emptySeries(len(values))
	lower = emptySeries(len(values))

	if period <= 0 {
		return mid, upper, lower
	}

	for i := period - 1; i < len(values); i++ {
		if mid[i].IsNone() {
			continue
		}

		mean := mid[i].Unwrap()

		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			delta := values[j] - mean
			variance += delta * delta
		}

		deviation := math.Sqrt(variance / float64(period))
		upper[i] = optional.Some(mean + k*deviation)
		lower[i] = optional.Some(mean - k*deviation)
	}

	return mid, upper, lower
}
