// Package indicator computes technical indicator series over OHLCV bars.
//
// Every function here is a pure transform: an ordered bar sequence in, a
// bundle of parallel series out. There is no incremental update path; callers
// recompute wholesale on every new bar set and may memoize externally.
//
// Series slots are optional.Option[float64]. A slot is None until the minimum
// window of history up to and including that index exists; callers must treat
// None distinctly from 0.
package indicator

import (
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/market-watch/internal/types"
)

// Default periods for the bundle, matching the terminal chart overlays.
const (
	ShortMAPeriod    = 20
	LongMAPeriod     = 50
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
	BollingerPeriod  = 20
	BollingerSigma   = 2.0
	RSIPeriod        = 14
)

// Series is one indicator output aligned index-for-index with its input bars.
type Series = []optional.Option[float64]

// Bundle holds every indicator series for one bar sequence. All series have
// exactly the same length as the input.
type Bundle struct {
	MA20          Series
	MA50          Series
	MACDLine      Series
	MACDSignal    Series
	MACDHistogram Series
	BollMid       Series
	BollUpper     Series
	BollLower     Series
	RSI14         Series
}

// Build computes the full indicator bundle from bars ordered ascending by
// start time. Inputs shorter than an indicator's window produce all-None
// series for that indicator; Build never fails.
func Build(bars []types.Bar) Bundle {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	macdLine, macdSignal, macdHistogram := MACD(closes, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod)
	bollMid, bollUpper, bollLower := BollingerBands(closes, BollingerPeriod, BollingerSigma)

	return Bundle{
		MA20:          SimpleMovingAverage(closes, ShortMAPeriod),
		MA50:          SimpleMovingAverage(closes, LongMAPeriod),
		MACDLine:      macdLine,
		MACDSignal:    macdSignal,
		MACDHistogram: macdHistogram,
		BollMid:       bollMid,
		BollUpper:     bollUpper,
		BollLower:     bollLower,
		RSI14:         RSI(closes, RSIPeriod),
	}
}

// emptySeries returns an all-None series of the given length.
func emptySeries(length int) Series {
	return make(Series, length)
}
