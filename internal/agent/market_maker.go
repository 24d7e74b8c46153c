package agent

import (
	"norn/internal/common"
)

// MarketMaker keeps paired quotes around the last traded price, skewing
// them against its inventory so the position mean-reverts. Stale quotes are
// cancelled and re-placed on every wakeup once the reference price has
// moved.
type MarketMaker struct {
	id         common.AgentID
	instrument common.Instrument

	SpreadTicks int64 // half-spread, in ticks
	Quantity    int64 // size per quote
	MaxPosition int64 // stop quoting the side that would grow past this

	position  int64
	lastPrice int64
	anchor    int64 // price the current quotes were built around

	bidID, askID common.OrderID           // zero when no quote is live
	buys, sells  map[common.OrderID]int64 // live quote ids -> remaining quantity
}

// NewMarketMaker builds a maker quoting around the instrument's prints.
func NewMarketMaker(id common.AgentID, instrument common.Instrument, spreadTicks, quantity, maxPosition int64) *MarketMaker {
	return &MarketMaker{
		id:          id,
		instrument:  instrument,
		SpreadTicks: spreadTicks,
		Quantity:    quantity,
		MaxPosition: maxPosition,
		buys:        make(map[common.OrderID]int64),
		sells:       make(map[common.OrderID]int64),
	}
}

func (m *MarketMaker) ID() common.AgentID { return m.id }

// Position returns the signed inventory, positive long.
func (m *MarketMaker) Position() int64 { return m.position }

// OnMarketData tracks the reference price from trade and mark prints.
func (m *MarketMaker) OnMarketData(ev common.MarketEvent) {
	switch e := ev.(type) {
	case common.Trade:
		m.lastPrice = e.Price
	case common.MarkPrint:
		m.lastPrice = e.Price
	}
}

// OnFill updates inventory from fills touching either quote and retires
// quotes that are fully done.
func (m *MarketMaker) OnFill(trade common.Trade) []OrderIntent {
	if rem, mine := m.buys[trade.BuyOrderID]; mine {
		m.position += trade.Quantity
		if rem-trade.Quantity > 0 {
			m.buys[trade.BuyOrderID] = rem - trade.Quantity
		} else {
			delete(m.buys, trade.BuyOrderID)
			if m.bidID == trade.BuyOrderID {
				m.bidID = 0
			}
		}
	}
	if rem, mine := m.sells[trade.SellOrderID]; mine {
		m.position -= trade.Quantity
		if rem-trade.Quantity > 0 {
			m.sells[trade.SellOrderID] = rem - trade.Quantity
		} else {
			delete(m.sells, trade.SellOrderID)
			if m.askID == trade.SellOrderID {
				m.askID = 0
			}
		}
	}
	return nil
}

// OrderCancelled prunes attribution state for a quote that left the book.
func (m *MarketMaker) OrderCancelled(id common.OrderID) {
	delete(m.buys, id)
	delete(m.sells, id)
	if m.bidID == id {
		m.bidID = 0
	}
	if m.askID == id {
		m.askID = 0
	}
}

// OnWakeup re-quotes when the reference price has moved off the anchor.
func (m *MarketMaker) OnWakeup(common.Time) []OrderIntent {
	if m.lastPrice == 0 {
		return nil
	}
	if m.anchor == m.lastPrice && (m.bidID != 0 || m.askID != 0) {
		return nil
	}

	var intents []OrderIntent
	if m.bidID != 0 {
		intents = append(intents, Cancel(m.instrument.ID, m.bidID))
		m.bidID = 0
	}
	if m.askID != 0 {
		intents = append(intents, Cancel(m.instrument.ID, m.askID))
		m.askID = 0
	}

	// Inventory skew: shift both quotes one tick against the position for
	// every full quote size held.
	skew := (m.position / max(m.Quantity, 1)) * m.instrument.Tick
	bid := m.lastPrice - m.SpreadTicks*m.instrument.Tick - skew
	ask := m.lastPrice + m.SpreadTicks*m.instrument.Tick - skew
	if ask <= bid {
		ask = bid + m.instrument.Tick
	}

	if bid > 0 && m.position < m.MaxPosition {
		intents = append(intents, Submit(m.instrument.ID, common.Buy, common.LimitOrder, bid, m.Quantity))
	}
	if m.position > -m.MaxPosition {
		intents = append(intents, Submit(m.instrument.ID, common.Sell, common.LimitOrder, ask, m.Quantity))
	}
	m.anchor = m.lastPrice
	return intents
}

// OrderPlaced records the runtime-assigned ids so quotes can be cancelled
// and fills attributed.
func (m *MarketMaker) OrderPlaced(id common.OrderID, intent OrderIntent) {
	if intent.Kind != SubmitIntent {
		return
	}
	if intent.Side == common.Buy {
		m.buys[id] = intent.Quantity
		m.bidID = id
	} else {
		m.sells[id] = intent.Quantity
		m.askID = id
	}
}
