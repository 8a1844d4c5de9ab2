// Package session composes the watcher: watchlist state, snapshot store,
// subscription manager, stream controller, degraded poller, and the pull
// transport, behind one mutex-guarded object.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/market-watch/internal/logger"
	"github.com/rxtech-lab/market-watch/internal/marketdata"
	"github.com/rxtech-lab/market-watch/internal/poller"
	"github.com/rxtech-lab/market-watch/internal/snapshot"
	"github.com/rxtech-lab/market-watch/internal/stream"
	"github.com/rxtech-lab/market-watch/internal/types"
	"github.com/rxtech-lab/market-watch/pkg/errors"
)

// ErrorCodeSubscriptionLimit is the upstream error for exceeding the per-user
// subscription cap; it is surfaced but does not disturb the connection.
const ErrorCodeSubscriptionLimit = "STREAM_SUBSCRIPTION_LIMIT_EXCEEDED"

// API is the pull-transport surface the session depends on.
// *marketdata.Client satisfies it; tests substitute a fake.
type API interface {
	ListBars(ctx context.Context, query marketdata.BarsQuery) (*marketdata.BarsResult, error)
	ListSnapshots(ctx context.Context, symbols []string) ([]types.Snapshot, error)
	ListWatchlist(ctx context.Context) ([]marketdata.WatchlistItem, error)
	AddTicker(ctx context.Context, symbol string) (*marketdata.WatchlistItem, error)
	RemoveTicker(ctx context.Context, symbol string) error
}

// Options configures a session.
type Options struct {
	// BaseURL is the backend origin.
	BaseURL string
	// Token supplies the bearer token for both transports.
	Token func() string
	// Timeframe is the initial detail timeframe; defaults to daily.
	Timeframe types.Timeframe
	// SeedWatchlist is pushed to the backend when its watchlist is empty.
	SeedWatchlist []string

	// Stream lifecycle tuning; zero values use the stream defaults.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	DegradedAfter time.Duration

	// Degraded polling cadences; zero values use the poller defaults.
	SnapshotInterval time.Duration
	BarsInterval     time.Duration

	// API overrides the REST client; nil builds one from BaseURL and Token.
	API API
	// Dial overrides the stream transport dialer.
	Dial stream.DialFunc
}

// Session is the long-lived market-watch engine. All exported methods are
// safe for concurrent use; after Close every mutation is a no-op.
type Session struct {
	log    *logger.Logger
	api    API
	store  *snapshot.Store
	subs   *stream.SubscriptionManager
	ctrl   *stream.Controller
	poller *poller.Poller

	mu          sync.Mutex
	seedSymbols []string
	watchlist   []string
	focused     string
	timeframe   types.Timeframe
	details     map[string]*Detail
	inflight    map[string]string
	status      types.ConnectionState
	latency     types.DataLatency
	source      types.Source
	lastSync    time.Time
	lastError   string
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// New assembles a session. Start must be called to bootstrap state and open
// the stream.
func New(opts Options, log *logger.Logger) *Session {
	if opts.Token == nil {
		opts.Token = func() string { return "" }
	}

	if !opts.Timeframe.Valid() {
		opts.Timeframe = types.TimeframeDay
	}

	api := opts.API
	if api == nil {
		api = marketdata.NewClient(opts.BaseURL, opts.Token)
	}

	s := &Session{
		log:       log,
		api:       api,
		store:     snapshot.NewStore(),
		subs:      stream.NewSubscriptionManager(),
		timeframe: opts.Timeframe,
		details:   map[string]*Detail{},
		inflight:  map[string]string{},
		status:    types.ConnectionIdle,
		latency:   types.LatencyDelayed,
		source:    types.SourcePull,
	}

	s.poller = poller.New(opts.SnapshotInterval, opts.BarsInterval, s.pollSnapshots, s.pollFocusedBars)

	s.ctrl = stream.NewController(stream.Config{
		BaseURL:       opts.BaseURL,
		Token:         opts.Token,
		ReconnectBase: opts.ReconnectBase,
		ReconnectMax:  opts.ReconnectMax,
		DegradedAfter: opts.DegradedAfter,
		Dial:          opts.Dial,
	}, s.subs, stream.Callbacks{
		OnStateChange:   s.onStateChange,
		OnLatencyChange: s.onLatencyChange,
		OnMarket:        s.onMarket,
		OnStreamError:   s.onStreamError,
		OnOpen:          s.onStreamOpen,
		StartPolling:    s.poller.Start,
		StopPolling:     s.poller.Stop,
	}, log)

	seeds := make([]string, 0, len(opts.SeedWatchlist))
	for _, symbol := range opts.SeedWatchlist {
		if normalized := types.NormalizeSymbol(symbol); types.ValidSymbol(normalized) {
			seeds = append(seeds, normalized)
		}
	}

	s.seedSymbols = seeds

	return s
}

// Start bootstraps the session: load the watchlist, focus its first entry,
// refresh snapshots, load the focused detail, and open the stream.
func (s *Session) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()

		return errors.New(errors.ErrCodeSessionClosed, "session is closed")
	}

	s.ctx = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.RefreshWatchlist(runCtx); err != nil {
		s.log.Warn("initial watchlist load failed", zap.Error(err))
	}

	if err := s.RefreshSnapshots(runCtx, nil); err != nil {
		s.log.Warn("initial snapshot refresh failed", zap.Error(err))
	}

	if focused := s.Focused(); focused != "" {
		s.LoadDetail(runCtx, focused, true)
	}

	s.ctrl.Start(runCtx)

	return nil
}

// Close tears the session down: the stream closes, polling stops, and every
// in-flight fetch completion is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.closed = true
	clear(s.inflight)
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.ctrl.Close()
	s.poller.Stop()
}

// CredentialsChanged re-evaluates the token supplier, opening or closing the
// stream accordingly.
func (s *Session) CredentialsChanged() {
	s.ctrl.CredentialsChanged()
}

// --- view accessors ---

// Watchlist returns the current normalized watchlist, in backend order.
func (s *Session) Watchlist() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.watchlist...)
}

// Focused returns the focused symbol, or "" when the watchlist is empty.
func (s *Session) Focused() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.focused
}

// Timeframe returns the active detail timeframe.
func (s *Session) Timeframe() types.Timeframe {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timeframe
}

// Snapshot returns the reconciled snapshot for one symbol.
func (s *Session) Snapshot(symbol string) (types.Snapshot, bool) {
	return s.store.Snapshot(types.NormalizeSymbol(symbol))
}

// Snapshots returns a copy of every reconciled snapshot, keyed by symbol.
func (s *Session) Snapshots() map[string]types.Snapshot {
	return s.store.All()
}

// Status returns the stream connection state.
func (s *Session) Status() types.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Latency returns the current data-latency classification.
func (s *Session) Latency() types.DataLatency {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latency
}

// Source reports which transport produced the most recent data.
func (s *Session) Source() types.Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.source
}

// LastSync returns when data last arrived over either transport.
func (s *Session) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSync
}

// LastError returns the most recent non-fatal error surfaced to the user, or
// "" when the last operation cleared it.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastError
}

// --- watchlist operations ---

// RefreshWatchlist reloads the watchlist from the backend. When the backend
// list is empty and seeds are configured, the seeds are pushed first. Focus
// is kept if the focused symbol survives, otherwise it moves to the first
// entry.
func (s *Session) RefreshWatchlist(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeSessionClosed, "session is closed")
	}

	seeds := s.seedSymbols
	s.seedSymbols = nil
	s.mu.Unlock()

	items, err := s.api.ListWatchlist(ctx)
	if err != nil {
		s.setError(err.Error())
		return err
	}

	if len(items) == 0 && len(seeds) > 0 {
		for _, symbol := range seeds {
			if _, err := s.api.AddTicker(ctx, symbol); err != nil {
				s.log.Warn("failed to seed watchlist entry", zap.String("symbol", symbol), zap.Error(err))
			}
		}

		items, err = s.api.ListWatchlist(ctx)
		if err != nil {
			s.setError(err.Error())
			return err
		}
	}

	symbols := make([]string, 0, len(items))
	seen := map[string]bool{}

	for _, item := range items {
		normalized := types.NormalizeSymbol(item.Ticker)
		if normalized == "" || seen[normalized] {
			continue
		}

		seen[normalized] = true
		symbols = append(symbols, normalized)
	}

	s.mu.Lock()
	s.watchlist = symbols

	switch {
	case len(symbols) == 0:
		s.focused = ""
	case !seen[s.focused]:
		s.focused = symbols[0]
	}

	s.mu.Unlock()

	s.syncDesired()

	return nil
}

// AddSymbol validates, persists, focuses, and warms up one watchlist entry.
func (s *Session) AddSymbol(ctx context.Context, symbol string) error {
	normalized := types.NormalizeSymbol(symbol)
	if !types.ValidSymbol(normalized) {
		err := errors.Newf(errors.ErrCodeInvalidSymbol, "invalid symbol %q", symbol)
		s.setError(err.Error())

		return err
	}

	if _, err := s.api.AddTicker(ctx, normalized); err != nil {
		s.setError(err.Error())
		return err
	}

	if err := s.RefreshWatchlist(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.focused = normalized
	s.lastError = ""
	s.mu.Unlock()

	s.syncDesired()

	if err := s.RefreshSnapshots(ctx, []string{normalized}); err != nil {
		s.log.Warn("snapshot warmup failed", zap.String("symbol", normalized), zap.Error(err))
	}

	s.LoadDetail(ctx, normalized, true)

	return nil
}

// RemoveSymbol deletes one watchlist entry. Removing the focused symbol
// refocuses to the first remaining entry; the snapshot and detail for a
// symbol no longer watched or focused are evicted.
func (s *Session) RemoveSymbol(ctx context.Context, symbol string) error {
	normalized := types.NormalizeSymbol(symbol)
	if !types.ValidSymbol(normalized) {
		err := errors.Newf(errors.ErrCodeInvalidSymbol, "invalid symbol %q", symbol)
		s.setError(err.Error())

		return err
	}

	if err := s.api.RemoveTicker(ctx, normalized); err != nil {
		s.setError(err.Error())
		return err
	}

	if err := s.RefreshWatchlist(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	watched := false

	for _, entry := range s.watchlist {
		if entry == normalized {
			watched = true
			break
		}
	}

	evict := !watched && s.focused != normalized
	if evict {
		delete(s.details, normalized)
		delete(s.inflight, normalized)
	}

	s.lastError = ""
	s.mu.Unlock()

	if evict {
		s.store.Remove(normalized)
	}

	return nil
}

// Focus moves the detail view to a symbol and loads its detail, reusing the
// cache when the timeframe matches.
func (s *Session) Focus(ctx context.Context, symbol string) {
	normalized := types.NormalizeSymbol(symbol)
	if normalized == "" {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.focused = normalized
	s.mu.Unlock()

	s.syncDesired()
	s.LoadDetail(ctx, normalized, false)
}

// SetTimeframe switches the detail timeframe and force-reloads the focused
// symbol under it.
func (s *Session) SetTimeframe(ctx context.Context, timeframe types.Timeframe) error {
	if !timeframe.Valid() {
		return errors.Newf(errors.ErrCodeInvalidTimeframe, "invalid timeframe %q", string(timeframe))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeSessionClosed, "session is closed")
	}

	s.timeframe = timeframe
	focused := s.focused
	s.mu.Unlock()

	if focused != "" {
		s.LoadDetail(ctx, focused, true)
	}

	return nil
}

// RefreshSnapshots pulls current snapshots for the given symbols (the whole
// watchlist when nil) and merges them through the recency gate.
func (s *Session) RefreshSnapshots(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeSessionClosed, "session is closed")
	}

	if symbols == nil {
		symbols = append([]string(nil), s.watchlist...)
	}

	connected := s.status == types.ConnectionConnected
	s.mu.Unlock()

	if len(symbols) == 0 {
		return nil
	}

	snapshots, err := s.api.ListSnapshots(ctx, symbols)
	if err != nil {
		s.setError(err.Error())
		return err
	}

	now := time.Now().UTC()

	for _, snap := range snapshots {
		at := snap.UpdatedAt
		if at.IsZero() {
			at = now
		}

		s.store.Merge(snap.Symbol, snapshot.Patch{
			Last:         optional.Some(snap.Last),
			Change:       optional.Some(snap.Change),
			ChangePct:    optional.Some(snap.ChangePct),
			Open:         optional.Some(snap.Open),
			High:         optional.Some(snap.High),
			Low:          optional.Some(snap.Low),
			Volume:       optional.Some(snap.Volume),
			MarketStatus: snap.MarketStatus,
		}, at, types.SourcePull)
	}

	s.mu.Lock()
	s.lastSync = now

	if !connected {
		s.source = types.SourcePull
		s.latency = types.LatencyDelayed
	}

	s.mu.Unlock()

	return nil
}

// syncDesired recomputes the desired subscription set (watchlist plus the
// focused symbol) and pushes the diff over the stream if it is open.
func (s *Session) syncDesired() {
	s.mu.Lock()
	desired := make([]string, 0, len(s.watchlist)+1)
	desired = append(desired, s.watchlist...)

	if s.focused != "" {
		desired = append(desired, s.focused)
	}

	s.mu.Unlock()

	s.subs.SetDesired(desired)

	if err := s.subs.Sync(s.ctrl.Send); err != nil {
		s.setError(err.Error())
	}
}

func (s *Session) setError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = message
}

// --- stream callbacks ---

func (s *Session) onStateChange(state types.ConnectionState) {
	s.mu.Lock()
	s.status = state

	if state != types.ConnectionConnected {
		s.source = types.SourcePull
	}

	s.mu.Unlock()

	s.log.Info("stream state changed", zap.String("state", string(state)))
}

func (s *Session) onLatencyChange(latency types.DataLatency) {
	s.mu.Lock()
	s.latency = latency
	s.mu.Unlock()
}

func (s *Session) onStreamOpen() {
	s.mu.Lock()
	s.lastError = ""
	s.lastSync = time.Now().UTC()
	focused := s.focused
	ctx := s.ctx
	s.mu.Unlock()

	if focused == "" {
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}

	go s.LoadDetail(ctx, focused, true)
}

func (s *Session) onStreamError(code, message string) {
	text := message
	if code != "" {
		text = fmt.Sprintf("%s: %s", code, message)
	}

	s.setError(text)

	if code == ErrorCodeSubscriptionLimit {
		s.log.Warn("stream subscription limit exceeded, extra symbols served by polling only")
	}
}

// onMarket merges one market envelope into the snapshot store and refreshes
// the session's freshness bookkeeping.
func (s *Session) onMarket(env *stream.Envelope) {
	market := env.Market
	if market == nil {
		return
	}

	last := market.Last
	if last.IsNone() {
		last = market.Price
	}

	merged := s.store.Merge(market.Symbol, snapshot.Patch{
		Last:         last,
		Change:       market.Change,
		ChangePct:    market.ChangePct,
		Open:         market.Open,
		High:         market.High,
		Low:          market.Low,
		Volume:       market.Volume,
		MarketStatus: market.MarketStatus,
	}, market.EventAt, types.SourcePush)

	if !merged {
		return
	}

	s.mu.Lock()
	s.lastSync = market.EventAt
	s.source = types.SourcePush
	s.latency = types.LatencyRealTime

	// A live tick refreshes the detail's freshness stamp without touching
	// its bars.
	if detail, ok := s.details[market.Symbol]; ok {
		detail.UpdatedAt = market.EventAt
		detail.Source = types.SourcePush
	}

	s.mu.Unlock()
}

// --- polling hooks ---

func (s *Session) pollSnapshots() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.RefreshSnapshots(ctx, nil); err != nil {
		s.log.Debug("snapshot poll failed", zap.Error(err))
	}
}

func (s *Session) pollFocusedBars() {
	s.mu.Lock()
	focused := s.focused
	ctx := s.ctx
	s.mu.Unlock()

	if focused == "" {
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}

	s.LoadDetail(ctx, focused, true)
}
