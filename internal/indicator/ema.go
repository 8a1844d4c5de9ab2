package indicator

import "github.com/moznion/go-optional"

// ExponentialMovingAverage computes the EMA of values over the given period.
// The seed at index period-1 is the simple average of the first period values;
// from there the recurrence ema[i] = value[i]*alpha + ema[i-1]*(1-alpha) with
// alpha = 2/(period+1) applies. This matches pandas ewm with adjust=False.
// Slots before the seed index are None.
func ExponentialMovingAverage(values []float64, period int) Series {
	result := emptySeries(len(values))
	if period <= 0 || len(values) < period {
		return result
	}

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}

	prev := seed / float64(period)
	result[period-1] = optional.Some(prev)

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		prev = values[i]*alpha + prev*(1-alpha)
		result[i] = optional.Some(prev)
	}

	return result
}

// emaFromSeries applies an EMA over a series that may start with None slots,
// seeding at the first index where a full period-sized window of defined
// values has been seen. None slots after the seed are skipped without
// advancing the recurrence.
func emaFromSeries(values Series, period int) Series {
	result := emptySeries(len(values))
	if period <= 0 {
		return result
	}

	window := make([]float64, 0, period)
	alpha := 2.0 / float64(period+1)

	seeded := false
	prev := 0.0

	for i, slot := range values {
		if slot.IsNone() {
			continue
		}

		value := slot.Unwrap()

		if !seeded {
			window = append(window, value)
			if len(window) < period {
				continue
			}

			sum := 0.0
			for _, w := range window {
				sum += w
			}

			prev = sum / float64(period)
			seeded = true
			result[i] = optional.Some(prev)

			continue
		}

		prev = value*alpha + prev*(1-alpha)
		result[i] = optional.Some(prev)
	}

	return result
}
