package book

import (
	"fmt"

	"github.com/tidwall/btree"

	"norn/internal/common"
)

// PriceLevel holds the orders resting at one price, oldest first. Orders
// are appended at the tail on insert and consumed from the head on match,
// which is what gives the book its time priority.
type PriceLevel struct {
	price  int64
	orders []*common.Order
}

// Price returns the level's price.
func (lvl *PriceLevel) Price() int64 { return lvl.price }

// Depth returns the aggregate resting quantity at the level.
func (lvl *PriceLevel) Depth() int64 {
	var total int64
	for _, o := range lvl.orders {
		total += o.Quantity
	}
	return total
}

type priceLevels = btree.BTreeG[*PriceLevel]

// OrderBook maintains the bid/ask ladders for a single instrument in
// price-time priority. Accepted orders live in an id-indexed arena owned by
// the book; every other component refers to them by OrderID only, so there
// are no ownership cycles between orders and the book.
type OrderBook struct {
	instrument common.Instrument

	// Price levels, sorted best first: bids descending, asks ascending.
	bids *priceLevels
	asks *priceLevels

	// Arena of live resting orders. Retired orders (filled, cancelled)
	// are removed; history is the sink's problem, not the book's.
	arena map[common.OrderID]*common.Order

	// Per-side resting liquidity, kept in step with every mutation.
	bidQuantity int64
	askQuantity int64
}

// New builds an empty book for one instrument.
func New(instrument common.Instrument) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price > b.price
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price < b.price
	})
	return &OrderBook{
		instrument: instrument,
		bids:       bids,
		asks:       asks,
		arena:      make(map[common.OrderID]*common.Order),
	}
}

// Instrument returns the instrument this book trades.
func (book *OrderBook) Instrument() common.Instrument { return book.instrument }

// Validate rejects orders that reference the wrong instrument, carry
// misaligned prices/quantities, or a non-positive size. The book is left
// untouched on rejection.
func (book *OrderBook) Validate(order common.Order) error {
	if order.Instrument != book.instrument.ID {
		return fmt.Errorf("%w: %s", common.ErrUnknownInstrument, order.Instrument)
	}
	if err := book.instrument.ValidateQuantity(order.TotalQuantity); err != nil {
		return err
	}
	switch order.OrderType {
	case common.LimitOrder, common.StopLimitOrder:
		if err := book.instrument.ValidatePrice(order.Price); err != nil {
			return err
		}
	case common.MarketOrder:
		// No price to validate.
	}
	switch order.OrderType {
	case common.StopOrder, common.StopLimitOrder:
		if err := book.instrument.ValidatePrice(order.StopPrice); err != nil {
			return fmt.Errorf("stop price: %w", err)
		}
	}
	return nil
}

// Insert places a limit order at the tail of its price level, creating the
// level if absent. The order is copied into the arena; the caller keeps no
// mutable handle. Returns the resulting depth at the order's price.
func (book *OrderBook) Insert(order common.Order) (int64, error) {
	if err := book.Validate(order); err != nil {
		return 0, err
	}
	if order.OrderType != common.LimitOrder {
		return 0, fmt.Errorf("%w: only limit orders rest in the book", common.ErrValidation)
	}
	if _, ok := book.arena[order.ID]; ok {
		return 0, fmt.Errorf("%w: duplicate order id %d", common.ErrValidation, order.ID)
	}

	resting := order
	book.arena[order.ID] = &resting

	levels := book.sideLevels(order.Side)
	level, ok := levels.GetMut(&PriceLevel{price: order.Price})
	if ok {
		level.orders = append(level.orders, &resting)
	} else {
		level = &PriceLevel{price: order.Price, orders: []*common.Order{&resting}}
		levels.Set(level)
	}

	if order.Side == common.Buy {
		book.bidQuantity += resting.Quantity
	} else {
		book.askQuantity += resting.Quantity
	}
	return level.Depth(), nil
}

// Cancel removes a resting order. Idempotent: cancelling an unknown or
// already-retired order returns ErrNotFound rather than failing the book.
// Returns a copy of the order in its final state.
func (book *OrderBook) Cancel(id common.OrderID) (common.Order, error) {
	order, ok := book.arena[id]
	if !ok {
		return common.Order{}, common.ErrNotFound
	}

	levels := book.sideLevels(order.Side)
	level, ok := levels.GetMut(&PriceLevel{price: order.Price})
	if !ok {
		return common.Order{}, fmt.Errorf("%w: order %d resting on missing level %d",
			common.ErrBookCorruption, id, order.Price)
	}
	for i, resting := range level.orders {
		if resting.ID != id {
			continue
		}
		level.orders = append(level.orders[:i], level.orders[i+1:]...)
		break
	}
	if len(level.orders) == 0 {
		levels.Delete(level)
	}

	if order.Side == common.Buy {
		book.bidQuantity -= order.Quantity
	} else {
		book.askQuantity -= order.Quantity
	}
	delete(book.arena, id)
	order.Status = common.Cancelled
	return *order, nil
}

// HeadOrder returns a copy-safe pointer to the first order in time priority
// at the best price on the given side. The pointer stays owned by the book;
// only the matching engine may mutate it, via FillHead.
func (book *OrderBook) HeadOrder(side common.Side) (*common.Order, bool) {
	level, ok := book.sideLevels(side).Min()
	if !ok {
		return nil, false
	}
	return level.orders[0], true
}

// FillHead decrements the head order at the best price on the given side,
// retiring it from the arena and its level when fully filled and deleting
// the level when it empties. Returns the level price and the depth
// remaining at that price after the fill.
func (book *OrderBook) FillHead(side common.Side, qty int64) (price, depth int64, err error) {
	levels := book.sideLevels(side)
	level, ok := levels.MinMut()
	if !ok || len(level.orders) == 0 {
		return 0, 0, fmt.Errorf("%w: fill against empty side", common.ErrBookCorruption)
	}
	head := level.orders[0]
	if qty > head.Quantity {
		return 0, 0, fmt.Errorf("%w: fill %d exceeds head order remaining %d",
			common.ErrBookCorruption, qty, head.Quantity)
	}

	head.Fill(qty)
	if side == common.Buy {
		book.bidQuantity -= qty
	} else {
		book.askQuantity -= qty
	}
	if head.Quantity == 0 {
		delete(book.arena, head.ID)
		level.orders = level.orders[1:]
		if len(level.orders) == 0 {
			levels.Delete(level)
			return level.price, 0, nil
		}
	}
	return level.price, level.Depth(), nil
}

// BestBid returns the highest resting bid price.
func (book *OrderBook) BestBid() (int64, bool) {
	level, ok := book.bids.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// BestAsk returns the lowest resting ask price.
func (book *OrderBook) BestAsk() (int64, bool) {
	level, ok := book.asks.Min()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// DepthAt returns the resting quantity at a price, zero if no level exists.
func (book *OrderBook) DepthAt(side common.Side, price int64) int64 {
	level, ok := book.sideLevels(side).Get(&PriceLevel{price: price})
	if !ok {
		return 0
	}
	return level.Depth()
}

// SideQuantity returns the total resting liquidity on one side.
func (book *OrderBook) SideQuantity(side common.Side) int64 {
	if side == common.Buy {
		return book.bidQuantity
	}
	return book.askQuantity
}

// Get returns a copy of a live resting order.
func (book *OrderBook) Get(id common.OrderID) (common.Order, bool) {
	order, ok := book.arena[id]
	if !ok {
		return common.Order{}, false
	}
	return *order, true
}

// Crossed reports whether the book violates the uncrossed invariant
// (best bid >= best ask). Checked by the engine after every submit.
func (book *OrderBook) Crossed() bool {
	bid, bidOk := book.BestBid()
	ask, askOk := book.BestAsk()
	return bidOk && askOk && bid >= ask
}

// FlatLevel is a copied snapshot of one price level, for tests and
// diagnostics.
type FlatLevel struct {
	Price  int64
	Orders []common.Order
}

// Levels snapshots one side of the book, best price first.
func (book *OrderBook) Levels(side common.Side) []FlatLevel {
	var flat []FlatLevel
	book.sideLevels(side).Scan(func(level *PriceLevel) bool {
		fl := FlatLevel{Price: level.price, Orders: make([]common.Order, len(level.orders))}
		for i, o := range level.orders {
			fl.Orders[i] = *o
		}
		flat = append(flat, fl)
		return true
	})
	return flat
}

func (book *OrderBook) sideLevels(side common.Side) *priceLevels {
	if side == common.Buy {
		return book.bids
	}
	return book.asks
}
