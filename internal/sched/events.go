package sched

import "norn/internal/common"

// Payload is the closed set of work a simulation event can carry. The
// scheduler itself never inspects payloads; the dispatcher switches on the
// concrete type.
type Payload interface {
	payload()
}

// OrderSubmit delivers a new order to an instrument shard.
type OrderSubmit struct {
	Order common.Order
}

// OrderCancel asks a shard to remove a resting or stop order.
type OrderCancel struct {
	Instrument common.InstrumentID
	OrderID    common.OrderID
	Owner      common.AgentID
}

// AgentWakeup hands control to one agent's OnWakeup callback.
type AgentWakeup struct {
	Agent common.AgentID
}

// MarketDataDispatch injects a synthetic price print, used by historical
// bar ingestion. The print reaches stop triggers and feed subscribers like
// a trade print.
type MarketDataDispatch struct {
	Instrument common.InstrumentID
	Price      int64
}

func (OrderSubmit) payload()        {}
func (OrderCancel) payload()        {}
func (AgentWakeup) payload()        {}
func (MarketDataDispatch) payload() {}
