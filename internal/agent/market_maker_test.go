package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"norn/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

var makerInstrument = common.Instrument{ID: "TEST", Symbol: "TEST", Tick: 1, Lot: 1}

func wakeAndPlace(m *MarketMaker) []OrderIntent {
	intents := m.OnWakeup(0)
	var id common.OrderID = 100
	for _, intent := range intents {
		if intent.Kind == SubmitIntent {
			id++
			m.OrderPlaced(id, intent)
		}
	}
	return intents
}

// --- Tests ------------------------------------------------------------------

func TestMarketMaker_QuotesAroundLastPrint(t *testing.T) {
	m := NewMarketMaker("maker", makerInstrument, 2, 10, 100)

	// No reference price yet: stays out of the market.
	assert.Empty(t, m.OnWakeup(0))

	m.OnMarketData(common.MarkPrint{Instrument: makerInstrument.ID, Price: 1000})
	intents := wakeAndPlace(m)
	require.Len(t, intents, 2)
	assert.Equal(t, common.Buy, intents[0].Side)
	assert.Equal(t, int64(998), intents[0].Price)
	assert.Equal(t, common.Sell, intents[1].Side)
	assert.Equal(t, int64(1002), intents[1].Price)

	// Reference price unchanged: no re-quote.
	assert.Empty(t, m.OnWakeup(0))
}

func TestMarketMaker_RequotesWhenPriceMoves(t *testing.T) {
	m := NewMarketMaker("maker", makerInstrument, 2, 10, 100)
	m.OnMarketData(common.MarkPrint{Instrument: makerInstrument.ID, Price: 1000})
	wakeAndPlace(m)

	m.OnMarketData(common.Trade{Instrument: makerInstrument.ID, Price: 1010})
	intents := wakeAndPlace(m)
	require.Len(t, intents, 4)
	// Old quotes cancelled first, then fresh ones around the new print.
	assert.Equal(t, CancelIntent, intents[0].Kind)
	assert.Equal(t, CancelIntent, intents[1].Kind)
	assert.Equal(t, int64(1008), intents[2].Price)
	assert.Equal(t, int64(1012), intents[3].Price)
}

func TestMarketMaker_SkewsAgainstInventory(t *testing.T) {
	m := NewMarketMaker("maker", makerInstrument, 2, 10, 100)
	m.OnMarketData(common.MarkPrint{Instrument: makerInstrument.ID, Price: 1000})
	wakeAndPlace(m)

	// Fill the bid completely: long 10, quotes shift down one tick.
	bids := m.buys
	require.Len(t, bids, 1)
	var bidID common.OrderID
	for id := range bids {
		bidID = id
	}
	m.OnFill(common.Trade{Instrument: makerInstrument.ID, Price: 998, Quantity: 10, BuyOrderID: bidID})
	assert.Equal(t, int64(10), m.Position())

	m.OnMarketData(common.Trade{Instrument: makerInstrument.ID, Price: 998})
	intents := wakeAndPlace(m)
	var quotes []OrderIntent
	for _, intent := range intents {
		if intent.Kind == SubmitIntent {
			quotes = append(quotes, intent)
		}
	}
	require.Len(t, quotes, 2)
	assert.Equal(t, int64(998-2-1), quotes[0].Price)
	assert.Equal(t, int64(998+2-1), quotes[1].Price)
}

func TestMarketMaker_StopsQuotingAtPositionLimit(t *testing.T) {
	m := NewMarketMaker("maker", makerInstrument, 2, 10, 10)
	m.OnMarketData(common.MarkPrint{Instrument: makerInstrument.ID, Price: 1000})
	wakeAndPlace(m)

	var bidID common.OrderID
	for id := range m.buys {
		bidID = id
	}
	m.OnFill(common.Trade{Instrument: makerInstrument.ID, Price: 998, Quantity: 10, BuyOrderID: bidID})
	require.Equal(t, int64(10), m.Position())

	m.OnMarketData(common.Trade{Instrument: makerInstrument.ID, Price: 999})
	intents := wakeAndPlace(m)
	for _, intent := range intents {
		if intent.Kind == SubmitIntent {
			// At the long limit only the ask may be refreshed.
			assert.Equal(t, common.Sell, intent.Side)
		}
	}
}

func TestMarketMaker_PrunesRetiredQuotes(t *testing.T) {
	m := NewMarketMaker("maker", makerInstrument, 2, 10, 100)
	m.OnMarketData(common.MarkPrint{Instrument: makerInstrument.ID, Price: 1000})
	wakeAndPlace(m)
	require.Len(t, m.buys, 1)
	require.Len(t, m.sells, 1)

	var bidID, askID common.OrderID
	for id := range m.buys {
		bidID = id
	}
	for id := range m.sells {
		askID = id
	}

	// A partial fill keeps the quote tracked; completing it prunes.
	m.OnFill(common.Trade{Instrument: makerInstrument.ID, Price: 998, Quantity: 4, BuyOrderID: bidID})
	assert.Len(t, m.buys, 1)
	m.OnFill(common.Trade{Instrument: makerInstrument.ID, Price: 998, Quantity: 6, BuyOrderID: bidID})
	assert.Empty(t, m.buys)
	assert.Equal(t, int64(10), m.Position())

	// A cancelled quote is pruned on the cancel notification.
	m.OrderCancelled(askID)
	assert.Empty(t, m.sells)
}

func TestNoiseTrader_SameSeedSameIntents(t *testing.T) {
	emit := func(seed int64) []OrderIntent {
		n := NewNoiseTrader("noise", makerInstrument, seed)
		n.OnMarketData(common.MarkPrint{Instrument: makerInstrument.ID, Price: 1000})
		var all []OrderIntent
		for i := 0; i < 50; i++ {
			all = append(all, n.OnWakeup(common.Time(i))...)
		}
		return all
	}

	first := emit(42)
	second := emit(42)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	// Prices stay inside the configured band around the print.
	for _, intent := range first {
		if intent.OrderType == common.LimitOrder {
			assert.InDelta(t, 1000, intent.Price, 5)
			assert.Positive(t, intent.Quantity)
		}
	}
}
