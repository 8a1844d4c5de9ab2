// Package snapshot maintains the per-symbol latest-known-state table shared
// by the push and pull transports. Both write through the same recency-gated
// merge, so downstream consumers cannot tell the paths apart except by the
// source tag.
package snapshot

import (
	"sync"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/market-watch/internal/types"
)

// Patch carries the fields one update actually provides. Absent fields keep
// their previous value on merge; a bare trade tick must not reset the
// session's open/high/low to zero.
type Patch struct {
	Last         optional.Option[float64]
	Change       optional.Option[float64]
	ChangePct    optional.Option[float64]
	Open         optional.Option[float64]
	High         optional.Option[float64]
	Low          optional.Option[float64]
	Volume       optional.Option[float64]
	MarketStatus string
}

type entry struct {
	snap      types.Snapshot
	highWater time.Time
}

// Store is the latest-known-state table, keyed by normalized symbol.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

// Merge applies a partial update for symbol if it is not older than the
// symbol's high-water mark. Strictly older updates are discarded silently;
// this is what keeps a slow REST response from clobbering a newer streamed
// tick, and vice versa. Returns true if the update was accepted.
//
// On first sight of a symbol the entry is seeded with zeros and an epoch-0
// high-water mark, so the first real update always wins.
func (s *Store) Merge(symbol string, patch Patch, at time.Time, source types.Source) bool {
	symbol = types.NormalizeSymbol(symbol)
	if symbol == "" {
		return false
	}

	// Unparsable timestamps arrive as the zero time; treat them as epoch 0 so
	// they can still seed a fresh entry but never displace real data.
	if at.IsZero() {
		at = time.Unix(0, 0).UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[symbol]
	if !ok {
		e = &entry{
			snap:      types.NewEmptySnapshot(symbol),
			highWater: time.Unix(0, 0).UTC(),
		}
		s.entries[symbol] = e
	}

	if at.Before(e.highWater) {
		return false
	}

	if patch.Last.IsSome() {
		e.snap.Last = patch.Last.Unwrap()
	}

	if patch.Change.IsSome() {
		e.snap.Change = patch.Change.Unwrap()
	}

	if patch.ChangePct.IsSome() {
		e.snap.ChangePct = patch.ChangePct.Unwrap()
	}

	if patch.Open.IsSome() {
		e.snap.Open = patch.Open.Unwrap()
	}

	if patch.High.IsSome() {
		e.snap.High = patch.High.Unwrap()
	}

	if patch.Low.IsSome() {
		e.snap.Low = patch.Low.Unwrap()
	}

	if patch.Volume.IsSome() {
		e.snap.Volume = patch.Volume.Unwrap()
	}

	if patch.MarketStatus != "" {
		e.snap.MarketStatus = patch.MarketStatus
	}

	e.snap.UpdatedAt = at
	e.snap.Source = source
	e.highWater = at

	return true
}

// Snapshot returns the current snapshot for symbol.
func (s *Store) Snapshot(symbol string) (types.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[types.NormalizeSymbol(symbol)]
	if !ok {
		return types.Snapshot{}, false
	}

	return e.snap, true
}

// All returns the snapshots for every tracked symbol.
func (s *Store) All() map[string]types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]types.Snapshot, len(s.entries))
	for symbol, e := range s.entries {
		out[symbol] = e.snap
	}

	return out
}

// Remove drops the snapshot for symbol. Called when a symbol leaves the
// watchlist and no session references it.
func (s *Store) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, types.NormalizeSymbol(symbol))
}

// Len returns the number of tracked symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
