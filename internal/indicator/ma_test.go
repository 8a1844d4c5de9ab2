package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type MATestSuite struct {
	suite.Suite
}

func TestMASuite(t *testing.T) {
	suite.Run(t, new(MATestSuite))
}

func (suite *MATestSuite) TestRunningSumWindow() {
	result := SimpleMovingAverage([]float64{1, 2, 3, 4, 5}, 3)

	suite.Len(result, 5)
	suite.True(result[0].IsNone())
	suite.True(result[1].IsNone())
	suite.InDelta(2.0, result[2].Unwrap(), 1e-9)
	suite.InDelta(3.0, result[3].Unwrap(), 1e-9)
	suite.InDelta(4.0, result[4].Unwrap(), 1e-9)
}

func (suite *MATestSuite) TestInsufficientHistory() {
	result := SimpleMovingAverage([]float64{1, 2}, 3)

	suite.Len(result, 2)
	for _, slot := range result {
		suite.True(slot.IsNone())
	}
}

func (suite *MATestSuite) TestEmptyInput() {
	suite.Empty(SimpleMovingAverage(nil, 20))
}

func (suite *MATestSuite) TestInvalidPeriod() {
	result := SimpleMovingAverage([]float64{1, 2, 3}, 0)

	suite.Len(result, 3)
	for _, slot := range result {
		suite.True(slot.IsNone())
	}
}
