package stream

import (
	"sort"
	"sync"

	"github.com/rxtech-lab/market-watch/internal/types"
	"github.com/rxtech-lab/market-watch/pkg/errors"
)

// Channels every subscription covers on the push transport.
var StreamChannels = []string{"trade", "quote", "aggregate"}

// ErrTransportClosed is returned by a SendFunc when the push transport is not
// open. Sync treats it as "skip silently": the desired set is re-applied in
// full on the next open.
var ErrTransportClosed = errors.New(errors.ErrCodeStreamClosed, "push transport is not open")

// SendFunc delivers one subscribe/unsubscribe action for a batch of symbols.
type SendFunc func(action string, symbols []string) error

// SubscriptionManager tracks the desired symbol set (watchlist plus focus)
// and the set the transport has acknowledged, and emits the minimal
// subscribe/unsubscribe diff. The desired set is derived state: it is
// recomputed from the watchlist on every relevant change, never accumulated.
type SubscriptionManager struct {
	mu      sync.Mutex
	desired map[string]struct{}
	acked   map[string]struct{}
}

// NewSubscriptionManager creates a manager with empty desired and acked sets.
func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{
		desired: make(map[string]struct{}),
		acked:   make(map[string]struct{}),
	}
}

// SetDesired replaces the desired set with the normalized union of the given
// symbols. Empty entries are dropped.
func (m *SubscriptionManager) SetDesired(symbols []string) {
	next := make(map[string]struct{}, len(symbols))

	for _, symbol := range symbols {
		normalized := types.NormalizeSymbol(symbol)
		if normalized != "" {
			next[normalized] = struct{}{}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.desired = next
}

// Desired returns the desired set, sorted.
func (m *SubscriptionManager) Desired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return sortedKeys(m.desired)
}

// ResetAcked clears the acknowledged set. Called on every (re)connect: the
// transport's server-side subscription state is assumed empty after any
// reconnect, so the next Sync re-sends the full desired set.
func (m *SubscriptionManager) ResetAcked() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.acked = make(map[string]struct{})
}

// Sync emits the diff between desired and acked through send, unsubscribes
// first to bound server-side fan-out. A SendFunc reporting ErrTransportClosed
// skips silently; any other send failure is returned without mutating the
// acked set, so the next Sync retries the same diff.
func (m *SubscriptionManager) Sync(send SendFunc) error {
	m.mu.Lock()

	toUnsubscribe := make([]string, 0)
	for symbol := range m.acked {
		if _, ok := m.desired[symbol]; !ok {
			toUnsubscribe = append(toUnsubscribe, symbol)
		}
	}

	toSubscribe := make([]string, 0)
	for symbol := range m.desired {
		if _, ok := m.acked[symbol]; !ok {
			toSubscribe = append(toSubscribe, symbol)
		}
	}

	sort.Strings(toUnsubscribe)
	sort.Strings(toSubscribe)

	m.mu.Unlock()

	if len(toUnsubscribe) == 0 && len(toSubscribe) == 0 {
		return nil
	}

	if len(toUnsubscribe) > 0 {
		if err := send("unsubscribe", toUnsubscribe); err != nil {
			return m.sendOutcome(err)
		}
	}

	if len(toSubscribe) > 0 {
		if err := send("subscribe", toSubscribe); err != nil {
			return m.sendOutcome(err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The transport accepted the whole diff; acked now mirrors desired.
	m.acked = make(map[string]struct{}, len(m.desired))
	for symbol := range m.desired {
		m.acked[symbol] = struct{}{}
	}

	return nil
}

// sendOutcome maps a send failure to the Sync result: a closed transport is
// not an error, anything else surfaces as a non-fatal subscription failure.
func (m *SubscriptionManager) sendOutcome(err error) error {
	if errors.Is(err, ErrTransportClosed) {
		return nil
	}

	return errors.Wrap(errors.ErrCodeSubscriptionSyncFailed, "failed to update stream subscriptions", err)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
