package indicator

import (
	"math"

	"github.com/moznion/go-optional"
)

// RSI computes the relative strength index over the given period. The average
// gain and loss are seeded with a simple average over the first period deltas,
// then smoothed with Wilder's recurrence avg = (avg*(period-1)+current)/period.
// RSI is 100 when the average loss is zero. The first defined slot is at index
// period; inputs with period or fewer values yield an all-None series.
func RSI(values []float64, period int) Series {
	result := emptySeries(len(values))
	if period <= 0 || len(values) <= period {
		return result
	}

	gains := 0.0
	losses := 0.0

	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta >= 0 {
			gains += delta
		} else {
			losses += math.Abs(delta)
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	result[period] = optional.Some(rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]

		gain := 0.0
		loss := 0.0

		if delta > 0 {
			gain = delta
		} else if delta < 0 {
			loss = math.Abs(delta)
		}

		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)

		result[i] = optional.Some(rsiValue(avgGain, avgLoss))
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}

	return 100 - 100/(1+avgGain/avgLoss)
}
