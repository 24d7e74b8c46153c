package engine

import (
	"github.com/rs/zerolog/log"

	"norn/internal/common"
)

// triggered reports whether a print at price satisfies a stop's condition.
// Buy stops arm above the market, sell stops below.
func triggered(stop *common.Order, price int64) bool {
	if stop.Side == common.Buy {
		return price >= stop.StopPrice
	}
	return price <= stop.StopPrice
}

// checkTriggers walks the watch list in arrival order and hands every
// triggered stop to the conversion callback as a market or limit order.
// Conversion is never executed inline; the callback enqueues a fresh event
// at the current simulation time, which fixes the tie-break relative to
// other same-timestamp events.
func (e *Engine) checkTriggers(price int64) {
	if len(e.stops) == 0 {
		return
	}

	kept := e.stops[:0]
	for _, stop := range e.stops {
		if !triggered(stop, price) {
			kept = append(kept, stop)
			continue
		}

		converted := *stop
		switch stop.OrderType {
		case common.StopOrder:
			converted.OrderType = common.MarketOrder
			converted.Price = 0
		case common.StopLimitOrder:
			converted.OrderType = common.LimitOrder
		}
		converted.StopPrice = 0
		converted.Status = common.Open

		log.Debug().
			Uint64("order", uint64(stop.ID)).
			Int64("print", price).
			Int64("stop", stop.StopPrice).
			Msg("stop order triggered")

		if e.trigger != nil {
			e.trigger(converted)
		}
	}
	e.stops = kept
}

// StopCount returns the number of armed stop orders, for diagnostics.
func (e *Engine) StopCount() int { return len(e.stops) }
