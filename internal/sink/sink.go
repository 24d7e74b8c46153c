package sink

import "norn/internal/common"

// Sink receives the core's append-only stream of trades and order status
// changes. The contract is at-least-once durable receipt; the core never
// waits on an acknowledgment to proceed, so implementations must not push
// back into the dispatch path.
type Sink interface {
	JournalTrade(trade common.Trade)
	JournalOrder(order common.Order)
	Close() error
}

// Nop discards everything. Used by tests and dry runs.
type Nop struct{}

func (Nop) JournalTrade(common.Trade) {}
func (Nop) JournalOrder(common.Order) {}
func (Nop) Close() error              { return nil }
