package indicator

import "github.com/moznion/go-optional"

// MACD computes the MACD line (EMA(fast) - EMA(slow) of closes), the signal
// line (EMA(signalPeriod) over the MACD line's defined run), and the
// histogram (line - signal). The histogram is None wherever either operand
// is None.
func MACD(values []float64, fastPeriod, slowPeriod, signalPeriod int) (line, signal, histogram Series) {
	fast := ExponentialMovingAverage(values, fastPeriod)
	slow := ExponentialMovingAverage(values, slowPeriod)

	line = emptySeries(len(values))
	for i := range values {
		if fast[i].IsSome() && slow[i].IsSome() {
			line[i] = optional.Some(fast[i].Unwrap() - slow[i].Unwrap())
		}
	}

	signal = emaFromSeries(line, signalPeriod)

	histogram = emptySeries(len(values))
	for i := range values {
		if line[i].IsSome() && signal[i].IsSome() {
			histogram[i] = optional.Some(line[i].Unwrap() - signal[i].Unwrap())
		}
	}

	return line, signal, histogram
}
