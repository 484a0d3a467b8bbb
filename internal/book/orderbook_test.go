package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderbookAddCreatesLevelAndBestPrice(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1, TimestampNS: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1005, Size: 3, OrderID: 2, TimestampNS: 2}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Ask, Price: 1010, Size: 4, OrderID: 3, TimestampNS: 3}))

	bid, ok := ob.BestBidPrice()
	require.True(t, ok)
	assert.Equal(t, int32(1005), bid)

	ask, ok := ob.BestAskPrice()
	require.True(t, ok)
	assert.Equal(t, int32(1010), ask)

	mid, ok := ob.MidPrice()
	require.True(t, ok)
	assert.InDelta(t, 1007.5, mid, 1e-9)
}

func TestOrderbookAddAggregatesVolumeAtSameLevel(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 7, OrderID: 2}))

	vol, ok := ob.BestBidVolume()
	require.True(t, ok)
	assert.Equal(t, int32(12), vol)
}

func TestOrderbookCancelRemovesOrderAndEmptyLevel(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Cancel, OrderID: 1}))

	_, ok := ob.BestBidPrice()
	assert.False(t, ok)
	assert.Equal(t, 0, ob.Count())
}

func TestOrderbookCancelUnknownOrderReturnsError(t *testing.T) {
	ob := NewOrderbook()
	err := ob.ProcessMessage(Message{Action: Cancel, OrderID: 999})
	assert.Error(t, err)
}

func TestOrderbookCancelLeavesLevelWhenOthersRemain(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 3, OrderID: 2}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Cancel, OrderID: 1}))

	vol, ok := ob.BestBidVolume()
	require.True(t, ok)
	assert.Equal(t, int32(3), vol)
}

func TestOrderbookModifyMissingOrderIsTreatedAsAdd(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Modify, Side: Bid, Price: 1000, Size: 5, OrderID: 42}))

	bid, ok := ob.BestBidPrice()
	require.True(t, ok)
	assert.Equal(t, int32(1000), bid)
}

func TestOrderbookModifySamePriceSizeDecreaseKeepsQueuePosition(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1, TimestampNS: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 2, TimestampNS: 2}))

	require.NoError(t, ob.ProcessMessage(Message{Action: Modify, Side: Bid, Price: 1000, Size: 2, OrderID: 1, TimestampNS: 3}))

	lim, ok := ob.limits.Find(1000, Bid)
	require.True(t, ok)
	require.NotNil(t, lim.Head)
	assert.Equal(t, uint64(1), lim.Head.ID, "order 1 should still be at the head of the FIFO")
	assert.Equal(t, int32(7), lim.Volume)
}

func TestOrderbookModifySamePriceSizeIncreaseLosesQueuePosition(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1, TimestampNS: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 2, TimestampNS: 2}))

	require.NoError(t, ob.ProcessMessage(Message{Action: Modify, Side: Bid, Price: 1000, Size: 9, OrderID: 1, TimestampNS: 3}))

	lim, ok := ob.limits.Find(1000, Bid)
	require.True(t, ok)
	require.NotNil(t, lim.Head)
	assert.Equal(t, uint64(2), lim.Head.ID, "order 2 should now lead the FIFO")
	assert.Equal(t, uint64(1), lim.Tail.ID)
	assert.Equal(t, int32(14), lim.Volume)
}

func TestOrderbookModifyPriceChangeMovesLevel(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Modify, Side: Bid, Price: 1010, Size: 5, OrderID: 1}))

	_, ok := ob.limits.Find(1000, Bid)
	assert.False(t, ok, "old level should be destroyed once empty")

	bid, ok := ob.BestBidPrice()
	require.True(t, ok)
	assert.Equal(t, int32(1010), bid)
}

func TestOrderbookTradeDoesNotMutateBookButUpdatesVWAP(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Trade, Price: 1002, Size: 10}))

	vol, _ := ob.BestBidVolume()
	assert.Equal(t, int32(5), vol, "trade must not mutate book state")
	assert.InDelta(t, 1002.0, ob.vwapNum/ob.vwapDen, 1e-9)
}

func TestOrderbookCalculateImbalanceZeroWhenEmpty(t *testing.T) {
	ob := NewOrderbook()
	ob.CalculateVols(5)
	assert.Equal(t, 0.0, ob.CalculateImbalance())
}

func TestOrderbookCalculateImbalanceSign(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 10, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Ask, Price: 1010, Size: 2, OrderID: 2}))

	ob.CalculateVols(5)
	assert.Greater(t, ob.CalculateImbalance(), 0.0)
}

func TestOrderbookCalculateVOIFirstCallIsZero(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Ask, Price: 1010, Size: 5, OrderID: 2}))

	assert.Equal(t, 0.0, ob.CalculateVOI())
	assert.Empty(t, ob.VOIHistory())
}

func TestOrderbookCalculateVOIBidIncreaseContributesPositive(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Ask, Price: 1010, Size: 5, OrderID: 2}))
	ob.CalculateVOI()

	// best bid moves up: Δb > 0, bid contribution is v_bid
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1005, Size: 8, OrderID: 3}))
	voi := ob.CalculateVOI()
	assert.Equal(t, 8.0, voi)
	assert.Len(t, ob.VOIHistory(), 1)
}

func TestOrderbookCalculateVWAPAccumulates(t *testing.T) {
	ob := NewOrderbook()
	ob.CalculateVWAP(100, 10)
	vwap := ob.CalculateVWAP(110, 10)
	assert.InDelta(t, 105.0, vwap, 1e-9)
}

func TestOrderbookCalculateSkewRequiresBothSidesPositive(t *testing.T) {
	ob := NewOrderbook()
	assert.Equal(t, 0.0, ob.CalculateSkew())

	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 100, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Ask, Price: 1010, Size: 10, OrderID: 2}))
	ob.CalculateVols(5)
	assert.Greater(t, ob.CalculateSkew(), 0.0)
}

func TestOrderbookResetThenReplayIsBitIdentical(t *testing.T) {
	msgs := []Message{
		{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1, TimestampNS: 1},
		{Action: Add, Side: Bid, Price: 1005, Size: 3, OrderID: 2, TimestampNS: 2},
		{Action: Add, Side: Ask, Price: 1010, Size: 4, OrderID: 3, TimestampNS: 3},
		{Action: Modify, Side: Bid, Price: 1005, Size: 1, OrderID: 2, TimestampNS: 4},
		{Action: Cancel, OrderID: 1},
		{Action: Trade, Price: 1010, Size: 2},
	}

	ob := NewOrderbook()
	for _, m := range msgs {
		require.NoError(t, ob.ProcessMessage(m))
	}
	ob.CalculateVols(5)
	ob.CalculateVOI()
	firstBid, _ := ob.BestBidPrice()
	firstVWAP := ob.vwapNum / ob.vwapDen
	firstVOI := ob.CalculateVOI()

	ob.Reset()
	assert.Equal(t, 0, ob.Count())
	assert.Equal(t, 0, ob.orders.Len())

	for _, m := range msgs {
		require.NoError(t, ob.ProcessMessage(m))
	}
	ob.CalculateVols(5)
	ob.CalculateVOI()
	secondBid, _ := ob.BestBidPrice()
	secondVWAP := ob.vwapNum / ob.vwapDen
	secondVOI := ob.CalculateVOI()

	assert.Equal(t, firstBid, secondBid)
	assert.InDelta(t, firstVWAP, secondVWAP, 1e-9)
	assert.InDelta(t, firstVOI, secondVOI, 1e-9)
}

func TestOrderbookLevelAtOutOfRange(t *testing.T) {
	ob := NewOrderbook()
	require.NoError(t, ob.ProcessMessage(Message{Action: Add, Side: Bid, Price: 1000, Size: 5, OrderID: 1}))

	_, ok := ob.LevelAt(Bid, 5)
	assert.False(t, ok)

	lim, ok := ob.LevelAt(Bid, 0)
	require.True(t, ok)
	assert.Equal(t, int32(1000), lim.Price)
}
