package indicator

import "github.com/moznion/go-optional"

// SimpleMovingAverage computes the SMA of values over the given period using
// a running-sum sliding window. The first period-1 slots are None. A
// non-positive period or an input shorter than the period yields an all-None
// series.
func SimpleMovingAverage(values []float64, period int) Series {
	result := emptySeries(len(values))
	if period <= 0 || len(values) < period {
		return result
	}

	runningSum := 0.0

	for i, value := range values {
		runningSum += value

		if i >= period {
			runningSum -= values[i-period]
		}

		if i >= period-1 {
			result[i] = optional.Some(runningSum / float64(period))
		}
	}

	return result
}
