package common

import "fmt"

// MarketEvent is the closed set of publications flowing through the market
// data feed: trades and book deltas, in exactly the order the matching
// engine produced them.
type MarketEvent interface {
	EventInstrument() InstrumentID
	EventTime() Time
}

// Trade records a match between two orders. Immutable once created; only
// the matching engine creates trades. The price is always the resting
// order's price.
type Trade struct {
	ID          TradeID
	Instrument  InstrumentID
	Price       int64
	Quantity    int64
	BuyOrderID  OrderID
	SellOrderID OrderID
	Time        Time
	Aggressor   Side // side of the order that took liquidity
}

func (t Trade) EventInstrument() InstrumentID { return t.Instrument }
func (t Trade) EventTime() Time               { return t.Time }

func (t Trade) String() string {
	return fmt.Sprintf("trade %d: %s %d@%d buy=%d sell=%d aggressor=%s",
		t.ID, t.Instrument, t.Quantity, t.Price, t.BuyOrderID, t.SellOrderID, t.Aggressor)
}

// BookDelta reports the aggregate resting quantity at one price after a
// book mutation. Depth zero means the level was removed.
type BookDelta struct {
	Instrument InstrumentID
	Side       Side
	Price      int64
	Depth      int64
	Time       Time
}

func (d BookDelta) EventInstrument() InstrumentID { return d.Instrument }
func (d BookDelta) EventTime() Time               { return d.Time }

func (d BookDelta) String() string {
	return fmt.Sprintf("delta %s %s %d@%d", d.Instrument, d.Side, d.Depth, d.Price)
}

// MarkPrint is a synthetic price print injected by historical data
// ingestion. It reaches stop triggers and subscribers like a trade print
// but references no orders.
type MarkPrint struct {
	Instrument InstrumentID
	Price      int64
	Time       Time
}

func (m MarkPrint) EventInstrument() InstrumentID { return m.Instrument }
func (m MarkPrint) EventTime() Time               { return m.Time }

func (m MarkPrint) String() string {
	return fmt.Sprintf("mark %s @%d", m.Instrument, m.Price)
}
