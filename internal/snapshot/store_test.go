package snapshot

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/market-watch/internal/types"
)

type StoreTestSuite struct {
	suite.Suite

	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	suite.store = NewStore()
}

func (suite *StoreTestSuite) TestFirstMergeSeedsAndWins() {
	at := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

	accepted := suite.store.Merge("aapl ", Patch{Last: optional.Some(187.5)}, at, types.SourcePush)
	suite.True(accepted)

	snap, ok := suite.store.Snapshot("AAPL")
	suite.True(ok)
	suite.Equal("AAPL", snap.Symbol)
	suite.Equal(187.5, snap.Last)
	suite.Equal(at, snap.UpdatedAt)
	suite.Equal(types.SourcePush, snap.Source)
}

func (suite *StoreTestSuite) TestOlderUpdateDiscardedSilently() {
	// merge(AAPL, {last:100}, t=10, push) then merge(AAPL, {last:99}, t=5, pull)
	// must leave last at 100.
	suite.store.Merge("AAPL", Patch{Last: optional.Some(100.0)}, time.Unix(10, 0), types.SourcePush)

	accepted := suite.store.Merge("AAPL", Patch{Last: optional.Some(99.0)}, time.Unix(5, 0), types.SourcePull)
	suite.False(accepted)

	snap, _ := suite.store.Snapshot("AAPL")
	suite.Equal(100.0, snap.Last)
	suite.Equal(types.SourcePush, snap.Source)
	suite.Equal(time.Unix(10, 0), snap.UpdatedAt)
}

func (suite *StoreTestSuite) TestPartialUpdateRetainsAbsentFields() {
	suite.store.Merge("AAPL", Patch{
		Last:   optional.Some(100.0),
		Open:   optional.Some(98.0),
		High:   optional.Some(101.0),
		Low:    optional.Some(97.0),
		Volume: optional.Some(5000.0),
	}, time.Unix(10, 0), types.SourcePull)

	// A bare trade tick carries only a price.
	suite.store.Merge("AAPL", Patch{Last: optional.Some(100.4)}, time.Unix(20, 0), types.SourcePush)

	snap, _ := suite.store.Snapshot("AAPL")
	suite.Equal(100.4, snap.Last)
	suite.Equal(98.0, snap.Open)
	suite.Equal(101.0, snap.High)
	suite.Equal(97.0, snap.Low)
	suite.Equal(5000.0, snap.Volume)
	suite.Equal(time.Unix(20, 0), snap.UpdatedAt)
}

func (suite *StoreTestSuite) TestEqualTimestampAccepted() {
	at := time.Unix(10, 0)

	suite.store.Merge("AAPL", Patch{Last: optional.Some(100.0)}, at, types.SourcePush)
	accepted := suite.store.Merge("AAPL", Patch{Last: optional.Some(100.5)}, at, types.SourcePull)

	suite.True(accepted)

	snap, _ := suite.store.Snapshot("AAPL")
	suite.Equal(100.5, snap.Last)
}

func (suite *StoreTestSuite) TestRecencyLawAcrossSources() {
	// The visible value always comes from the call with the latest accepted
	// timestamp, regardless of source.
	suite.store.Merge("AAPL", Patch{Last: optional.Some(1.0)}, time.Unix(1, 0), types.SourcePull)
	suite.store.Merge("AAPL", Patch{Last: optional.Some(3.0)}, time.Unix(3, 0), types.SourcePush)
	suite.store.Merge("AAPL", Patch{Last: optional.Some(2.0)}, time.Unix(2, 0), types.SourcePull)
	suite.store.Merge("AAPL", Patch{Last: optional.Some(4.0)}, time.Unix(4, 0), types.SourcePull)

	snap, _ := suite.store.Snapshot("AAPL")
	suite.Equal(4.0, snap.Last)
	suite.Equal(time.Unix(4, 0), snap.UpdatedAt)
}

func (suite *StoreTestSuite) TestZeroTimeTreatedAsEpoch() {
	suite.store.Merge("AAPL", Patch{Last: optional.Some(100.0)}, time.Unix(10, 0), types.SourcePush)

	// An unparsable timestamp (zero time) must never displace real data.
	accepted := suite.store.Merge("AAPL", Patch{Last: optional.Some(1.0)}, time.Time{}, types.SourcePull)
	suite.False(accepted)

	// But it can still seed a fresh entry.
	accepted = suite.store.Merge("MSFT", Patch{Last: optional.Some(2.0)}, time.Time{}, types.SourcePull)
	suite.True(accepted)
}

func (suite *StoreTestSuite) TestEmptySymbolRejected() {
	suite.False(suite.store.Merge("   ", Patch{Last: optional.Some(1.0)}, time.Unix(1, 0), types.SourcePush))
	suite.Zero(suite.store.Len())
}

func (suite *StoreTestSuite) TestRemove() {
	suite.store.Merge("AAPL", Patch{Last: optional.Some(1.0)}, time.Unix(1, 0), types.SourcePush)
	suite.store.Remove("aapl")

	_, ok := suite.store.Snapshot("AAPL")
	suite.False(ok)
}

func (suite *StoreTestSuite) TestMarketStatusRetainedWhenAbsent() {
	suite.store.Merge("AAPL", Patch{MarketStatus: "open"}, time.Unix(1, 0), types.SourcePull)
	suite.store.Merge("AAPL", Patch{Last: optional.Some(5.0)}, time.Unix(2, 0), types.SourcePush)

	snap, _ := suite.store.Snapshot("AAPL")
	suite.Equal("open", snap.MarketStatus)
}
