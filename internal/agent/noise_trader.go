package agent

import (
	"math/rand"

	"norn/internal/common"
)

// NoiseTrader submits random limit orders around the last print, providing
// the background flow the market maker trades against. The random source is
// seeded by the caller: two runs with the same seed emit identical intents,
// which keeps whole-run replays bit-for-bit stable.
type NoiseTrader struct {
	id         common.AgentID
	instrument common.Instrument
	rng        *rand.Rand

	RangeTicks int64 // max distance from the last print
	Quantity   int64 // size per order, in lots
	MarketOdds int   // one-in-N orders goes out as a market order

	lastPrice int64
}

// NewNoiseTrader builds a noise trader with its own seeded source.
func NewNoiseTrader(id common.AgentID, instrument common.Instrument, seed int64) *NoiseTrader {
	return &NoiseTrader{
		id:         id,
		instrument: instrument,
		rng:        rand.New(rand.NewSource(seed)),
		RangeTicks: 5,
		Quantity:   1,
		MarketOdds: 10,
	}
}

func (n *NoiseTrader) ID() common.AgentID { return n.id }

func (n *NoiseTrader) OnMarketData(ev common.MarketEvent) {
	switch e := ev.(type) {
	case common.Trade:
		n.lastPrice = e.Price
	case common.MarkPrint:
		n.lastPrice = e.Price
	}
}

func (n *NoiseTrader) OnFill(common.Trade) []OrderIntent { return nil }

func (n *NoiseTrader) OnWakeup(common.Time) []OrderIntent {
	if n.lastPrice == 0 {
		return nil
	}

	side := common.Buy
	if n.rng.Intn(2) == 1 {
		side = common.Sell
	}
	qty := n.Quantity * n.instrument.Lot

	if n.MarketOdds > 0 && n.rng.Intn(n.MarketOdds) == 0 {
		return []OrderIntent{Submit(n.instrument.ID, side, common.MarketOrder, 0, qty)}
	}

	offset := (1 + n.rng.Int63n(n.RangeTicks)) * n.instrument.Tick
	price := n.lastPrice - offset
	if side == common.Sell {
		price = n.lastPrice + offset
	}
	if price <= 0 {
		return nil
	}
	return []OrderIntent{Submit(n.instrument.ID, side, common.LimitOrder, price, qty)}
}
