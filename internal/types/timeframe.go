package types

// Timeframe selects the bar bucket used by the ticker detail view.
type Timeframe string

const (
	TimeframeMinute Timeframe = "minute"
	TimeframeDay    Timeframe = "day"
	TimeframeWeek   Timeframe = "week"
	TimeframeMonth  Timeframe = "month"
)

// TimeframeQuery is the fixed history query shape for one timeframe: bucket
// size, lookback window, and result-row cap. These are product constants, not
// derived values.
type TimeframeQuery struct {
	Timespan     string
	Multiplier   int
	LookbackDays int
	Limit        int
}

// Query returns the history query constants for the timeframe. Unknown
// timeframes fall back to the daily query.
func (t Timeframe) Query() TimeframeQuery {
	switch t {
	case TimeframeMinute:
		return TimeframeQuery{Timespan: "minute", Multiplier: 1, LookbackDays: 3, Limit: 4500}
	case TimeframeWeek:
		return TimeframeQuery{Timespan: "week", Multiplier: 1, LookbackDays: 3650, Limit: 700}
	case TimeframeMonth:
		return TimeframeQuery{Timespan: "month", Multiplier: 1, LookbackDays: 7300, Limit: 360}
	case TimeframeDay:
		return TimeframeQuery{Timespan: "day", Multiplier: 1, LookbackDays: 320, Limit: 900}
	default:
		return TimeframeQuery{Timespan: "day", Multiplier: 1, LookbackDays: 320, Limit: 900}
	}
}

// Valid reports whether the timeframe is one of the recognized values.
func (t Timeframe) Valid() bool {
	switch t {
	case TimeframeMinute, TimeframeDay, TimeframeWeek, TimeframeMonth:
		return true
	default:
		return false
	}
}
