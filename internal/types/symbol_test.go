package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type TypesTestSuite struct {
	suite.Suite
}

func TestTypesSuite(t *testing.T) {
	suite.Run(t, new(TypesTestSuite))
}

func (suite *TypesTestSuite) TestNormalizeSymbol() {
	suite.Equal("AAPL", NormalizeSymbol("  aapl "))
	suite.Equal("BRK.B", NormalizeSymbol("brk.b"))
	suite.Equal("", NormalizeSymbol("   "))
}

func (suite *TypesTestSuite) TestValidSymbol() {
	suite.True(ValidSymbol("AAPL"))
	suite.True(ValidSymbol("BRK.B"))
	suite.False(ValidSymbol(""))
	suite.False(ValidSymbol("aapl"))
	suite.False(ValidSymbol("TOOLONGSYMBOLNAME"))
	suite.False(ValidSymbol("BAD-1"))
}

func (suite *TypesTestSuite) TestSortBarsAscending() {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := []Bar{
		{Symbol: "AAPL", StartAt: t0.Add(2 * time.Hour)},
		{Symbol: "AAPL", StartAt: t0},
		{Symbol: "AAPL", StartAt: t0.Add(time.Hour)},
	}

	SortBarsAscending(bars)

	suite.Equal(t0, bars[0].StartAt)
	suite.Equal(t0.Add(time.Hour), bars[1].StartAt)
	suite.Equal(t0.Add(2*time.Hour), bars[2].StartAt)
}

func (suite *TypesTestSuite) TestTimeframeQueryConstants() {
	suite.Equal(TimeframeQuery{Timespan: "minute", Multiplier: 1, LookbackDays: 3, Limit: 4500}, TimeframeMinute.Query())
	suite.Equal(TimeframeQuery{Timespan: "day", Multiplier: 1, LookbackDays: 320, Limit: 900}, TimeframeDay.Query())
	suite.Equal(TimeframeQuery{Timespan: "week", Multiplier: 1, LookbackDays: 3650, Limit: 700}, TimeframeWeek.Query())
	suite.Equal(TimeframeQuery{Timespan: "month", Multiplier: 1, LookbackDays: 7300, Limit: 360}, TimeframeMonth.Query())

	// Unknown timeframes fall back to the daily query.
	suite.Equal(TimeframeDay.Query(), Timeframe("hour").Query())
}

func (suite *TypesTestSuite) TestNewEmptySnapshot() {
	snap := NewEmptySnapshot("AAPL")
	suite.Equal("AAPL", snap.Symbol)
	suite.Zero(snap.Last)
	suite.Equal(time.Unix(0, 0).UTC(), snap.UpdatedAt)
	suite.Equal("unknown", snap.MarketStatus)
}
