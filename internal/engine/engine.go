package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"norn/internal/book"
	"norn/internal/common"
)

// TriggerFunc receives a stop order converted into its market/limit form.
// The engine never executes a triggered stop inline; the callback is
// expected to enqueue the converted order as a fresh simulation event so
// it takes its place after everything already queued at the current time.
type TriggerFunc func(common.Order)

// Engine applies order intents to one instrument's book, producing trades
// and book deltas. One engine owns one book exclusively; together they form
// the instrument shard. All matching is synchronous and runs to completion
// inside a single event dispatch.
type Engine struct {
	book     *book.OrderBook
	clock    func() common.Time
	tradeSeq *common.Sequence
	trigger  TriggerFunc

	// Stop orders waiting for a trigger print, in arrival order.
	stops []*common.Order

	// Publications in exactly the order the book was mutated, drained by
	// the dispatcher after each event.
	events []common.MarketEvent

	// Resting orders mutated by fills since the last drain, one record per
	// fill, for the journal's status-change stream.
	changes []common.Order

	halted bool
}

// New builds the matching engine for one instrument shard. The clock is
// read at dispatch time for trade and delta timestamps; tradeSeq is shared
// across shards so trade ids are unique per run.
func New(b *book.OrderBook, clock func() common.Time, tradeSeq *common.Sequence, trigger TriggerFunc) *Engine {
	return &Engine{
		book:     b,
		clock:    clock,
		tradeSeq: tradeSeq,
		trigger:  trigger,
	}
}

// Book exposes the shard's order book for read-style queries.
func (e *Engine) Book() *book.OrderBook { return e.book }

// Halted reports whether this shard detected corruption and stopped.
func (e *Engine) Halted() bool { return e.halted }

// Submit runs an incoming order against the book. Marketable quantity
// trades immediately at resting prices in strict price-time priority;
// a limit remainder rests, a market remainder is rejected. Stop orders go
// to the watch list untouched. Returns the order in its post-submit state
// and the trades produced, in execution order.
func (e *Engine) Submit(order common.Order) (common.Order, []common.Trade, error) {
	if e.halted {
		return order, nil, common.ErrHalted
	}
	if err := e.book.Validate(order); err != nil {
		order.Status = common.Rejected
		return order, nil, err
	}

	order.SubmitTime = e.clock()
	order.Status = common.Open

	switch order.OrderType {
	case common.StopOrder, common.StopLimitOrder:
		held := order
		e.stops = append(e.stops, &held)
		return order, nil, nil
	}

	trades, err := e.match(&order)
	if err != nil {
		return order, trades, e.halt(err)
	}

	if order.Quantity > 0 {
		switch order.OrderType {
		case common.LimitOrder:
			depth, insErr := e.book.Insert(order)
			if insErr != nil {
				return order, trades, e.halt(insErr)
			}
			e.emitDelta(order.Side, order.Price, depth)
		case common.MarketOrder:
			// No resting market orders: the remainder dies here.
			order.Status = common.Rejected
			err = fmt.Errorf("%w: %d of %d unfilled",
				common.ErrNotEnoughLiquidity, order.Quantity, order.TotalQuantity)
		}
	}

	if e.book.Crossed() {
		return order, trades, e.halt(fmt.Errorf("%w: book crossed after submit %d",
			common.ErrBookCorruption, order.ID))
	}

	for _, trade := range trades {
		e.checkTriggers(trade.Price)
	}
	return order, trades, err
}

// Cancel removes a resting or stop order. Idempotent: unknown, filled and
// already-cancelled orders all return ErrNotFound.
func (e *Engine) Cancel(id common.OrderID) (common.Order, error) {
	if e.halted {
		return common.Order{}, common.ErrHalted
	}
	for i, stop := range e.stops {
		if stop.ID != id {
			continue
		}
		e.stops = append(e.stops[:i], e.stops[i+1:]...)
		stop.Status = common.Cancelled
		return *stop, nil
	}

	order, err := e.book.Cancel(id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Order{}, common.ErrNotFound
		}
		return common.Order{}, e.halt(err)
	}
	e.emitDelta(order.Side, order.Price, e.book.DepthAt(order.Side, order.Price))
	return order, nil
}

// MarkPrice injects a synthetic price print (historical bar replay). The
// print is published to subscribers and evaluated against the stop watch
// list exactly like a trade print.
func (e *Engine) MarkPrice(price int64) error {
	if e.halted {
		return common.ErrHalted
	}
	if err := e.book.Instrument().ValidatePrice(price); err != nil {
		return err
	}
	e.events = append(e.events, common.MarkPrint{
		Instrument: e.book.Instrument().ID,
		Price:      price,
		Time:       e.clock(),
	})
	e.checkTriggers(price)
	return nil
}

// TakeEvents drains the publication buffer. Order is exactly the order the
// underlying mutations happened; the feed must not reorder it.
func (e *Engine) TakeEvents() []common.MarketEvent {
	events := e.events
	e.events = nil
	return events
}

// TakeOrderChanges drains the resting-side status changes recorded since the
// last drain, in fill order.
func (e *Engine) TakeOrderChanges() []common.Order {
	changes := e.changes
	e.changes = nil
	return changes
}

// match sweeps the opposing side while the order is marketable. Each trade
// executes at the resting order's price; FIFO within a level is inherited
// from the book's head-first consumption.
func (e *Engine) match(order *common.Order) ([]common.Trade, error) {
	opposing := order.Side.Opposite()
	var trades []common.Trade
	for order.Quantity > 0 {
		head, ok := e.book.HeadOrder(opposing)
		if !ok {
			break
		}
		if order.OrderType == common.LimitOrder && !crosses(order.Side, order.Price, head.Price) {
			break
		}

		qty := min(order.Quantity, head.Quantity)
		buyID, sellID := order.ID, head.ID
		if order.Side == common.Sell {
			buyID, sellID = head.ID, order.ID
		}

		price, depth, err := e.book.FillHead(opposing, qty)
		if err != nil {
			return trades, err
		}
		e.changes = append(e.changes, *head)
		order.Fill(qty)

		trade := common.Trade{
			ID:          common.TradeID(e.tradeSeq.Next()),
			Instrument:  e.book.Instrument().ID,
			Price:       price,
			Quantity:    qty,
			BuyOrderID:  buyID,
			SellOrderID: sellID,
			Time:        e.clock(),
			Aggressor:   order.Side,
		}
		trades = append(trades, trade)
		e.events = append(e.events, trade)
		e.emitDelta(opposing, price, depth)
	}
	return trades, nil
}

func (e *Engine) emitDelta(side common.Side, price, depth int64) {
	e.events = append(e.events, common.BookDelta{
		Instrument: e.book.Instrument().ID,
		Side:       side,
		Price:      price,
		Depth:      depth,
		Time:       e.clock(),
	})
}

// halt stops the shard permanently. Continuing after a corrupted book risks
// economically nonsensical trades, so only a fresh run recovers.
func (e *Engine) halt(err error) error {
	e.halted = true
	log.Error().
		Err(err).
		Str("instrument", string(e.book.Instrument().ID)).
		Msg("instrument shard halted")
	return err
}

func crosses(side common.Side, limit, resting int64) bool {
	if side == common.Buy {
		return limit >= resting
	}
	return limit <= resting
}
