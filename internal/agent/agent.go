package agent

import (
	"norn/internal/common"
)

// IntentKind discriminates order intents.
type IntentKind int

const (
	SubmitIntent IntentKind = iota
	CancelIntent
)

// OrderIntent is what an agent callback returns: a request to submit or
// cancel an order. The runtime translates intents into scheduled events at
// the current simulation time; agents cannot time-travel.
type OrderIntent struct {
	Kind       IntentKind
	Instrument common.InstrumentID
	Side       common.Side
	OrderType  common.OrderType
	Price      int64
	StopPrice  int64
	Quantity   int64
	OrderID    common.OrderID // cancel target
}

// Submit builds a submit intent for a plain limit or market order.
func Submit(instrument common.InstrumentID, side common.Side, typ common.OrderType, price, qty int64) OrderIntent {
	return OrderIntent{
		Kind:       SubmitIntent,
		Instrument: instrument,
		Side:       side,
		OrderType:  typ,
		Price:      price,
		Quantity:   qty,
	}
}

// SubmitStop builds a submit intent for a stop or stop-limit order.
func SubmitStop(instrument common.InstrumentID, side common.Side, typ common.OrderType, price, stopPrice, qty int64) OrderIntent {
	intent := Submit(instrument, side, typ, price, qty)
	intent.StopPrice = stopPrice
	return intent
}

// Cancel builds a cancel intent.
func Cancel(instrument common.InstrumentID, id common.OrderID) OrderIntent {
	return OrderIntent{Kind: CancelIntent, Instrument: instrument, OrderID: id}
}

// Agent is the closed capability surface for a trading strategy. The
// runtime is the only component that calls into agent code; agents receive
// copies of market data and ids, never mutable handles into the book or
// queue.
type Agent interface {
	ID() common.AgentID

	// OnMarketData observes a published delta, trade or mark print for a
	// subscribed instrument. Observation only; reactions happen on the
	// next wakeup or fill.
	OnMarketData(ev common.MarketEvent)

	// OnFill is invoked for every trade touching one of the agent's
	// orders. Returned intents are scheduled at the current time.
	OnFill(trade common.Trade) []OrderIntent

	// OnWakeup is the agent's scheduled turn to act.
	OnWakeup(now common.Time) []OrderIntent
}

// OrderObserver is implemented by agents that need to learn the ids the
// runtime assigned to their submit intents, mirroring the submit_order ->
// order_id shape of the external agent API. Called synchronously during
// intent translation.
type OrderObserver interface {
	OrderPlaced(id common.OrderID, intent OrderIntent)
}

// RejectObserver is implemented by agents that want to hear about orders
// the book rejected (validation failures, unfilled market remainders).
type RejectObserver interface {
	OrderRejected(id common.OrderID, err error)
}

// CancelObserver is implemented by agents that want to hear when one of
// their orders left the book through a cancel.
type CancelObserver interface {
	OrderCancelled(id common.OrderID)
}
