package types

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"
)

// Bar is one OHLCV observation over a fixed time bucket.
//
// High/low consistency (high >= max(open, close), low <= min(open, close)) is
// produced upstream and not enforced here. Delivery order from the pull
// transport is not guaranteed, so consumers must sort before computing
// indicators.
type Bar struct {
	Symbol     string                  `json:"ticker"`
	Timespan   string                  `json:"timespan"`
	Multiplier int                     `json:"multiplier"`
	StartAt    time.Time               `json:"start_at"`
	Open       float64                 `json:"open"`
	High       float64                 `json:"high"`
	Low        float64                 `json:"low"`
	Close      float64                 `json:"close"`
	Volume     float64                 `json:"volume"`
	VWAP       optional.Option[float64] `json:"vwap,omitempty"`
	Trades     optional.Option[int64]   `json:"trades,omitempty"`
}

// SortBarsAscending orders bars by start timestamp, oldest first. The sort is
// stable so equal-timestamp bars keep their delivery order.
func SortBarsAscending(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].StartAt.Before(bars[j].StartAt)
	})
}
