package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type MACDTestSuite struct {
	suite.Suite
}

func TestMACDSuite(t *testing.T) {
	suite.Run(t, new(MACDTestSuite))
}

func (suite *MACDTestSuite) TestLineSignalHistogram() {
	values := []float64{1, 2, 3, 4, 5, 6}

	line, signal, histogram := MACD(values, 2, 3, 2)

	suite.Len(line, 6)
	suite.Len(signal, 6)
	suite.Len(histogram, 6)

	// Line is defined once the slow EMA (period 3) seeds at index 2.
	suite.True(line[0].IsNone())
	suite.True(line[1].IsNone())
	suite.InDelta(0.5, line[2].Unwrap(), 1e-9)
	suite.InDelta(0.5, line[3].Unwrap(), 1e-9)
	suite.InDelta(0.5, line[4].Unwrap(), 1e-9)
	suite.InDelta(0.5, line[5].Unwrap(), 1e-9)

	// Signal seeds once a full 2-value window of defined line values exists,
	// i.e. at index 3.
	suite.True(signal[2].IsNone())
	suite.InDelta(0.5, signal[3].Unwrap(), 1e-9)
	suite.InDelta(0.5, signal[4].Unwrap(), 1e-9)

	// Histogram is None wherever either operand is None.
	suite.True(histogram[2].IsNone())
	suite.InDelta(0.0, histogram[3].Unwrap(), 1e-9)
	suite.InDelta(0.0, histogram[5].Unwrap(), 1e-9)
}

func (suite *MACDTestSuite) TestInsufficientHistory() {
	line, signal, histogram := MACD([]float64{1, 2}, 12, 26, 9)

	suite.Len(line, 2)
	suite.Len(signal, 2)
	suite.Len(histogram, 2)

	for i := range line {
		suite.True(line[i].IsNone())
		suite.True(signal[i].IsNone())
		suite.True(histogram[i].IsNone())
	}
}
