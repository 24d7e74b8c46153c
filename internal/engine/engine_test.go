package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norn/internal/book"
	. "norn/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

var testInstrument = Instrument{ID: "TEST", Symbol: "TEST", Tick: 1, Lot: 1}

type testShard struct {
	engine    *Engine
	clock     Time
	triggered []Order
}

func createTestShard() *testShard {
	shard := &testShard{}
	var tradeSeq Sequence
	shard.engine = New(
		book.New(testInstrument),
		func() Time { return shard.clock },
		&tradeSeq,
		func(converted Order) { shard.triggered = append(shard.triggered, converted) },
	)
	return shard
}

func (s *testShard) submit(t *testing.T, order Order) []Trade {
	t.Helper()
	_, trades, err := s.engine.Submit(order)
	require.NoError(t, err)
	return trades
}

func limit(id OrderID, side Side, price, qty int64) Order {
	return Order{
		ID:            id,
		Instrument:    testInstrument.ID,
		OrderType:     LimitOrder,
		Side:          side,
		Price:         price,
		Quantity:      qty,
		TotalQuantity: qty,
	}
}

func market(id OrderID, side Side, qty int64) Order {
	return Order{
		ID:            id,
		Instrument:    testInstrument.ID,
		OrderType:     MarketOrder,
		Side:          side,
		Quantity:      qty,
		TotalQuantity: qty,
	}
}

func stop(id OrderID, side Side, stopPrice, qty int64) Order {
	return Order{
		ID:            id,
		Instrument:    testInstrument.ID,
		OrderType:     StopOrder,
		Side:          side,
		StopPrice:     stopPrice,
		Quantity:      qty,
		TotalQuantity: qty,
	}
}

// --- Tests ------------------------------------------------------------------

func TestSubmit_NonMarketableLimitRests(t *testing.T) {
	shard := createTestShard()

	trades := shard.submit(t, limit(1, Buy, 1000, 100))
	assert.Empty(t, trades)
	trades = shard.submit(t, limit(2, Sell, 1001, 50))
	assert.Empty(t, trades)

	resting, ok := shard.engine.Book().Get(1)
	require.True(t, ok)
	assert.Equal(t, Open, resting.Status)
	assert.False(t, shard.engine.Book().Crossed())
}

// Two resting bids at the same price, then a market sell bigger than the
// first: the first fills fully, the second partially, strictly in arrival
// order.
func TestSubmit_MarketSweepFIFO(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, limit(1, Buy, 1000, 100))
	shard.submit(t, limit(2, Buy, 1000, 50))

	trades := shard.submit(t, market(3, Sell, 120))
	require.Len(t, trades, 2)

	assert.Equal(t, int64(100), trades[0].Quantity)
	assert.Equal(t, int64(1000), trades[0].Price)
	assert.Equal(t, OrderID(1), trades[0].BuyOrderID)
	assert.Equal(t, OrderID(3), trades[0].SellOrderID)
	assert.Equal(t, Sell, trades[0].Aggressor)

	assert.Equal(t, int64(20), trades[1].Quantity)
	assert.Equal(t, int64(1000), trades[1].Price)
	assert.Equal(t, OrderID(2), trades[1].BuyOrderID)

	// Second buy order left resting with remaining 30.
	resting, ok := shard.engine.Book().Get(2)
	require.True(t, ok)
	assert.Equal(t, int64(30), resting.Quantity)
	assert.Equal(t, PartiallyFilled, resting.Status)
	_, ok = shard.engine.Book().Get(1)
	assert.False(t, ok)
}

// A marketable limit always trades at the resting price, never its own.
func TestSubmit_PriceImprovement(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, limit(1, Sell, 1005, 40))

	trades := shard.submit(t, limit(2, Buy, 1010, 40))
	require.Len(t, trades, 1)
	assert.Equal(t, int64(1005), trades[0].Price)
	assert.Equal(t, Buy, trades[0].Aggressor)
}

func TestSubmit_LimitRemainderRests(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, limit(1, Sell, 1000, 30))

	trades := shard.submit(t, limit(2, Buy, 1000, 50))
	require.Len(t, trades, 1)
	assert.Equal(t, int64(30), trades[0].Quantity)

	resting, ok := shard.engine.Book().Get(2)
	require.True(t, ok)
	assert.Equal(t, int64(20), resting.Quantity)
	bestBid, ok := shard.engine.Book().BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(1000), bestBid)
}

func TestSubmit_MarketRemainderRejected(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, limit(1, Sell, 1000, 30))

	final, trades, err := shard.engine.Submit(market(2, Buy, 50))
	assert.ErrorIs(t, err, ErrNotEnoughLiquidity)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(30), trades[0].Quantity)
	assert.Equal(t, Rejected, final.Status)
	assert.Equal(t, int64(20), final.Quantity)

	// Nothing rests on either side afterwards.
	_, ok := shard.engine.Book().BestBid()
	assert.False(t, ok)
	_, ok = shard.engine.Book().BestAsk()
	assert.False(t, ok)
}

func TestSubmit_ValidationRejects(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, limit(1, Buy, 1000, 100))

	empty := limit(2, Sell, 1000, 0)
	final, trades, err := shard.engine.Submit(empty)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, trades)
	assert.Equal(t, Rejected, final.Status)

	// Book unchanged by the rejection.
	assert.Equal(t, int64(100), shard.engine.Book().DepthAt(Buy, 1000))
}

func TestCancel_Idempotent(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, limit(1, Buy, 1000, 100))

	cancelled, err := shard.engine.Cancel(1)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, cancelled.Status)

	_, err = shard.engine.Cancel(1)
	assert.ErrorIs(t, err, ErrNotFound)

	// Cancelling a filled order is NotFound, not an error state.
	shard.submit(t, limit(2, Sell, 1000, 10))
	shard.submit(t, limit(3, Buy, 1000, 10))
	_, err = shard.engine.Cancel(2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuantityConservation(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, limit(1, Buy, 1000, 100))
	shard.submit(t, limit(2, Buy, 999, 80))

	trades := shard.submit(t, market(3, Sell, 150))
	var traded int64
	for _, trade := range trades {
		traded += trade.Quantity
	}
	assert.Equal(t, int64(150), traded)

	// Submitted minus traded equals what still rests.
	resting := shard.engine.Book().SideQuantity(Buy)
	assert.Equal(t, int64(100+80-150), resting)
}

// Every fill against a resting order surfaces that order's new state for the
// journal's status-change stream.
func TestSubmit_ReportsRestingStatusChanges(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, limit(1, Buy, 1000, 100))
	shard.submit(t, limit(2, Buy, 1000, 50))
	assert.Empty(t, shard.engine.TakeOrderChanges())

	shard.submit(t, market(3, Sell, 120))
	changes := shard.engine.TakeOrderChanges()
	require.Len(t, changes, 2)

	assert.Equal(t, OrderID(1), changes[0].ID)
	assert.Equal(t, Filled, changes[0].Status)
	assert.Zero(t, changes[0].Quantity)

	assert.Equal(t, OrderID(2), changes[1].ID)
	assert.Equal(t, PartiallyFilled, changes[1].Status)
	assert.Equal(t, int64(30), changes[1].Quantity)

	// Drained: a second take is empty.
	assert.Empty(t, shard.engine.TakeOrderChanges())
}

func TestStop_TriggersOnTradePrint(t *testing.T) {
	shard := createTestShard()

	trades := shard.submit(t, stop(1, Buy, 1005, 40))
	assert.Empty(t, trades)
	assert.Equal(t, 1, shard.engine.StopCount())

	// A trade below the trigger leaves the stop armed.
	shard.submit(t, limit(2, Sell, 1000, 10))
	shard.submit(t, limit(3, Buy, 1000, 10))
	assert.Empty(t, shard.triggered)

	// A print at the trigger converts it, as a new enqueued order, not an
	// inline execution.
	shard.submit(t, limit(4, Sell, 1005, 10))
	shard.submit(t, limit(5, Buy, 1005, 10))
	require.Len(t, shard.triggered, 1)
	converted := shard.triggered[0]
	assert.Equal(t, OrderID(1), converted.ID)
	assert.Equal(t, MarketOrder, converted.OrderType)
	assert.Equal(t, int64(40), converted.Quantity)
	assert.Zero(t, shard.engine.StopCount())
}

func TestStop_TriggersOnMarkPrint(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, stop(1, Sell, 995, 20))

	require.NoError(t, shard.engine.MarkPrice(996))
	assert.Empty(t, shard.triggered)

	require.NoError(t, shard.engine.MarkPrice(995))
	require.Len(t, shard.triggered, 1)
	assert.Equal(t, MarketOrder, shard.triggered[0].OrderType)
}

func TestStop_CancelBeforeTrigger(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, stop(1, Buy, 1005, 40))

	cancelled, err := shard.engine.Cancel(1)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, cancelled.Status)
	assert.Zero(t, shard.engine.StopCount())

	require.NoError(t, shard.engine.MarkPrice(1010))
	assert.Empty(t, shard.triggered)
}

func TestTakeEvents_PreservesMutationOrder(t *testing.T) {
	shard := createTestShard()
	shard.submit(t, limit(1, Sell, 1000, 30))
	shard.engine.TakeEvents()

	shard.submit(t, limit(2, Buy, 1000, 50))
	events := shard.engine.TakeEvents()
	require.Len(t, events, 3)

	trade, ok := events[0].(Trade)
	require.True(t, ok)
	assert.Equal(t, int64(30), trade.Quantity)

	askDelta, ok := events[1].(BookDelta)
	require.True(t, ok)
	assert.Equal(t, Sell, askDelta.Side)
	assert.Zero(t, askDelta.Depth)

	bidDelta, ok := events[2].(BookDelta)
	require.True(t, ok)
	assert.Equal(t, Buy, bidDelta.Side)
	assert.Equal(t, int64(20), bidDelta.Depth)

	// Drained: a second take is empty.
	assert.Empty(t, shard.engine.TakeEvents())
}

func TestSubmit_TimestampsFromClock(t *testing.T) {
	shard := createTestShard()
	shard.clock = 1234

	shard.submit(t, limit(1, Sell, 1000, 10))
	trades := shard.submit(t, market(2, Buy, 10))
	require.Len(t, trades, 1)
	assert.Equal(t, Time(1234), trades[0].Time)
}
