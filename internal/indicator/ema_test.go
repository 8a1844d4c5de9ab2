package indicator

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type EMATestSuite struct {
	suite.Suite
}

func TestEMASuite(t *testing.T) {
	suite.Run(t, new(EMATestSuite))
}

func (suite *EMATestSuite) TestSeedIsSimpleAverage() {
	// period 3, alpha = 0.5: seed = (1+2+3)/3 = 2, then 4*.5+2*.5 = 3, 5*.5+3*.5 = 4.
	result := ExponentialMovingAverage([]float64{1, 2, 3, 4, 5}, 3)

	suite.Len(result, 5)
	suite.True(result[0].IsNone())
	suite.True(result[1].IsNone())
	suite.InDelta(2.0, result[2].Unwrap(), 1e-9)
	suite.InDelta(3.0, result[3].Unwrap(), 1e-9)
	suite.InDelta(4.0, result[4].Unwrap(), 1e-9)
}

func (suite *EMATestSuite) TestInsufficientHistory() {
	result := ExponentialMovingAverage([]float64{1, 2}, 3)

	suite.Len(result, 2)
	for _, slot := range result {
		suite.True(slot.IsNone())
	}
}

func (suite *EMATestSuite) TestFromSeriesSkipsLeadingNone() {
	series := Series{
		optional.None[float64](),
		optional.Some(1.0),
		optional.Some(2.0),
		optional.Some(3.0),
		optional.Some(4.0),
	}

	// period 2, alpha = 2/3: seed at index 2 = (1+2)/2 = 1.5,
	// then 3*2/3 + 1.5*1/3 = 2.5, then 4*2/3 + 2.5*1/3 = 3.5.
	result := emaFromSeries(series, 2)

	suite.Len(result, 5)
	suite.True(result[0].IsNone())
	suite.True(result[1].IsNone())
	suite.InDelta(1.5, result[2].Unwrap(), 1e-9)
	suite.InDelta(2.5, result[3].Unwrap(), 1e-9)
	suite.InDelta(3.5, result[4].Unwrap(), 1e-9)
}

func (suite *EMATestSuite) TestFromSeriesAllNone() {
	series := Series{
		optional.None[float64](),
		optional.None[float64](),
	}

	result := emaFromSeries(series, 2)

	suite.Len(result, 2)
	for _, slot := range result {
		suite.True(slot.IsNone())
	}
}
