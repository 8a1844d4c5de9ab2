package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxtech-lab/market-watch/internal/indicator"
	"github.com/rxtech-lab/market-watch/internal/marketdata"
	"github.com/rxtech-lab/market-watch/internal/types"
)

// Detail is the cached bars-and-indicators view for one symbol. A failed
// refresh keeps the previous Bars, Indicators, and DataSource and records
// the error.
type Detail struct {
	Bars       []types.Bar
	Indicators *indicator.Bundle
	Timeframe  types.Timeframe
	Loading    bool
	Err        string
	UpdatedAt  time.Time
	Source     types.Source
	// DataSource is the backend's provenance tag for the bars (the
	// X-Data-Source response header); empty when the backend did not report
	// one. Mixed-provenance responses are reported as-is.
	DataSource string
}

// Detail returns a copy of the cached detail for one symbol.
func (s *Session) Detail(symbol string) (Detail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	detail, ok := s.details[types.NormalizeSymbol(symbol)]
	if !ok {
		return Detail{}, false
	}

	copied := *detail
	copied.Bars = append([]types.Bar(nil), detail.Bars...)

	return copied, true
}

// LatestBar returns the newest cached bar for one symbol.
func (s *Session) LatestBar(symbol string) (types.Bar, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	detail, ok := s.details[types.NormalizeSymbol(symbol)]
	if !ok || len(detail.Bars) == 0 {
		return types.Bar{}, false
	}

	return detail.Bars[len(detail.Bars)-1], true
}

// LoadDetail fetches bars and rebuilds indicators for one symbol under the
// session's timeframe. An unforced load with a populated cache under the same
// timeframe is a no-op. The completion is discarded if the session closed,
// the timeframe moved on, or a newer request for the same symbol superseded
// it.
func (s *Session) LoadDetail(ctx context.Context, symbol string, force bool) {
	normalized := types.NormalizeSymbol(symbol)
	if normalized == "" {
		return
	}

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	timeframe := s.timeframe

	if existing, ok := s.details[normalized]; ok &&
		!force && existing.Timeframe == timeframe && len(existing.Bars) > 0 {
		s.mu.Unlock()
		return
	}

	requestID := uuid.NewString()
	s.inflight[normalized] = requestID

	detail := s.details[normalized]
	if detail == nil {
		detail = &Detail{}
		s.details[normalized] = detail
	}

	detail.Timeframe = timeframe
	detail.Loading = true
	detail.Err = ""

	s.mu.Unlock()

	query := timeframe.Query()
	now := time.Now().UTC()

	result, err := s.api.ListBars(ctx, marketdata.BarsQuery{
		Symbol:     normalized,
		Timespan:   query.Timespan,
		Multiplier: query.Multiplier,
		From:       now.AddDate(0, 0, -query.LookbackDays),
		To:         now,
		Limit:      query.Limit,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer request for the same symbol owns the inflight tag and the
	// Loading flag; only the current request may touch them.
	if s.closed || s.inflight[normalized] != requestID {
		return
	}

	delete(s.inflight, normalized)

	detail, ok := s.details[normalized]
	if !ok {
		return
	}

	if s.timeframe != timeframe {
		// The timeframe moved on mid-fetch; the result is stale but the
		// detail must not stay stuck in a loading state.
		detail.Loading = false
		return
	}

	if err != nil {
		detail.Loading = false
		detail.Err = err.Error()
		s.lastError = err.Error()
		s.log.Warn("detail fetch failed", zap.String("symbol", normalized), zap.Error(err))

		return
	}

	bars := result.Bars
	types.SortBarsAscending(bars)

	bundle := indicator.Build(bars)

	detail.Bars = bars
	detail.Indicators = &bundle
	detail.Timeframe = timeframe
	detail.Loading = false
	detail.Err = ""
	detail.UpdatedAt = time.Now().UTC()
	detail.Source = types.SourcePull
	detail.DataSource = result.Source

	s.log.Debug("detail refreshed",
		zap.String("symbol", normalized),
		zap.String("data_source", result.Source),
		zap.Int("bars", len(bars)),
	)
}
