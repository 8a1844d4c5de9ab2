package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RSITestSuite struct {
	suite.Suite
}

func TestRSISuite(t *testing.T) {
	suite.Run(t, new(RSITestSuite))
}

func (suite *RSITestSuite) TestWilderSmoothing() {
	// period 2: first two deltas are gains, so the seed RSI is 100. The next
	// delta is a loss: avgGain = 0.5, avgLoss = 0.5, RSI = 50.
	result := RSI([]float64{1, 2, 3, 2}, 2)

	suite.Len(result, 4)
	suite.True(result[0].IsNone())
	suite.True(result[1].IsNone())
	suite.InDelta(100.0, result[2].Unwrap(), 1e-9)
	suite.InDelta(50.0, result[3].Unwrap(), 1e-9)
}

func (suite *RSITestSuite) TestAllLossesApproachZero() {
	result := RSI([]float64{5, 4, 3, 2}, 2)

	suite.InDelta(0.0, result[2].Unwrap(), 1e-9)
	suite.InDelta(0.0, result[3].Unwrap(), 1e-9)
}

func (suite *RSITestSuite) TestEightBarsWithDefaultPeriodAllUndefined() {
	values := []float64{10, 11, 12, 11, 10, 11, 12, 13}

	result := RSI(values, RSIPeriod)

	suite.Len(result, 8)
	for _, slot := range result {
		suite.True(slot.IsNone())
	}
}

func (suite *RSITestSuite) TestExactPeriodLengthStillUndefined() {
	// RSI needs period deltas, i.e. period+1 values; exactly period values is
	// still insufficient.
	result := RSI(make([]float64, RSIPeriod), RSIPeriod)

	for _, slot := range result {
		suite.True(slot.IsNone())
	}
}
