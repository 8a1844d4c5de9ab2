// Package poller runs the pull-based fallback loops used while the push
// transport is degraded: a fast snapshot sweep across the whole watchlist and
// a slower bars refresh for the focused symbol.
package poller

import (
	"sync"
	"time"
)

// Default cadences for the two loops.
const (
	DefaultSnapshotInterval = 4 * time.Second
	DefaultBarsInterval     = 20 * time.Second
)

// Poller owns at most one timer per purpose. Start is idempotent: calling it
// while the loops are already running neither stacks timers nor resets their
// phase. Each tick also fires immediately on Start so degraded mode does not
// wait a full interval for its first refresh.
type Poller struct {
	snapshotInterval time.Duration
	barsInterval     time.Duration
	onSnapshots      func()
	onBars           func()

	mu            sync.Mutex
	snapshotTimer *time.Ticker
	barsTimer     *time.Ticker
	done          chan struct{}
}

// New creates a stopped poller. Non-positive intervals fall back to the
// defaults. Either callback may be nil, disabling that loop.
func New(snapshotInterval, barsInterval time.Duration, onSnapshots, onBars func()) *Poller {
	if snapshotInterval <= 0 {
		snapshotInterval = DefaultSnapshotInterval
	}

	if barsInterval <= 0 {
		barsInterval = DefaultBarsInterval
	}

	return &Poller{
		snapshotInterval: snapshotInterval,
		barsInterval:     barsInterval,
		onSnapshots:      onSnapshots,
		onBars:           onBars,
	}
}

// Start launches both loops. A no-op when already running.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return
	}

	p.done = make(chan struct{})

	if p.onSnapshots != nil {
		p.snapshotTimer = time.NewTicker(p.snapshotInterval)
		go p.loop(p.snapshotTimer, p.done, p.onSnapshots)
	}

	if p.onBars != nil {
		p.barsTimer = time.NewTicker(p.barsInterval)
		go p.loop(p.barsTimer, p.done, p.onBars)
	}
}

// Stop halts both loops. A no-op when already stopped.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done == nil {
		return
	}

	close(p.done)
	p.done = nil

	if p.snapshotTimer != nil {
		p.snapshotTimer.Stop()
		p.snapshotTimer = nil
	}

	if p.barsTimer != nil {
		p.barsTimer.Stop()
		p.barsTimer = nil
	}
}

// Running reports whether the loops are active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.done != nil
}

func (p *Poller) loop(ticker *time.Ticker, done chan struct{}, fn func()) {
	fn()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			fn()
		}
	}
}
