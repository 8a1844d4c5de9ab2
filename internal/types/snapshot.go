package types

import "time"

// Source tags which transport produced a piece of data.
type Source string

const (
	// SourcePush marks data delivered by the streaming (WebSocket) transport.
	SourcePush Source = "push"
	// SourcePull marks data delivered by the polling (REST) transport.
	SourcePull Source = "pull"
)

// Snapshot is the latest known trading state for one symbol. Exactly one
// Snapshot exists per subscribed symbol; it is mutated in place via
// recency-gated merge, never replaced wholesale except at creation.
type Snapshot struct {
	Symbol       string    `json:"ticker"`
	Last         float64   `json:"last"`
	Change       float64   `json:"change"`
	ChangePct    float64   `json:"change_pct"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Volume       float64   `json:"volume"`
	MarketStatus string    `json:"market_status"`
	UpdatedAt    time.Time `json:"updated_at"`
	Source       Source    `json:"-"`
}

// NewEmptySnapshot seeds a snapshot for a symbol seen for the first time.
// All numeric fields are zero and the timestamp is epoch 0 so the very first
// real update always wins the recency comparison.
func NewEmptySnapshot(symbol string) Snapshot {
	return Snapshot{
		Symbol:       symbol,
		Last:         0,
		Change:       0,
		ChangePct:    0,
		Open:         0,
		High:         0,
		Low:          0,
		Volume:       0,
		MarketStatus: "unknown",
		UpdatedAt:    time.Unix(0, 0).UTC(),
		Source:       SourcePull,
	}
}
