package sim

import (
	"fmt"
	"time"

	"norn/internal/common"
	"norn/internal/sched"
)

// BarRecord is one pre-sorted OHLCV bar from historical price storage.
type BarRecord struct {
	Time       common.Time
	Instrument common.InstrumentID
	Open       int64
	High       int64
	Low        int64
	Close      int64
	Volume     int64
}

// TickRecord is a single historical price print.
type TickRecord struct {
	Time       common.Time
	Instrument common.InstrumentID
	Price      int64
	Quantity   int64
}

// FlowOrder is one historical order intent for order-flow replay.
type FlowOrder struct {
	Time       common.Time
	Instrument common.InstrumentID
	Side       common.Side
	OrderType  common.OrderType
	Price      int64
	StopPrice  int64
	Quantity   int64
	Owner      common.AgentID
}

// IngestBars stages a pre-sorted bar sequence as mark-price dispatch
// events: open at the bar's timestamp, then high, low and close spread
// across the bar interval. Out-of-order input fails with ErrInvalidTime
// and must not be retried with the same timestamps.
func (s *Simulation) IngestBars(bars []BarRecord, interval time.Duration) error {
	quarter := common.Time(interval.Nanoseconds() / 4)
	var last common.Time
	for i, bar := range bars {
		if i > 0 && bar.Time < last {
			return fmt.Errorf("%w: bar %d at %v after bar at %v",
				common.ErrInvalidTime, i, bar.Time, last)
		}
		last = bar.Time

		if _, ok := s.ctx.Shard(bar.Instrument); !ok {
			return fmt.Errorf("%w: %s", common.ErrUnknownInstrument, bar.Instrument)
		}
		prints := [4]int64{bar.Open, bar.High, bar.Low, bar.Close}
		for j, price := range prints {
			at := bar.Time + common.Time(j)*quarter
			_, err := s.ctx.Scheduler.Schedule(at, sched.MarketDataDispatch{
				Instrument: bar.Instrument,
				Price:      price,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// IngestTicks stages pre-sorted tick prints as mark-price dispatch events.
func (s *Simulation) IngestTicks(ticks []TickRecord) error {
	var last common.Time
	for i, tick := range ticks {
		if i > 0 && tick.Time < last {
			return fmt.Errorf("%w: tick %d at %v after tick at %v",
				common.ErrInvalidTime, i, tick.Time, last)
		}
		last = tick.Time

		_, err := s.ctx.Scheduler.Schedule(tick.Time, sched.MarketDataDispatch{
			Instrument: tick.Instrument,
			Price:      tick.Price,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// IngestOrderFlow stages a pre-sorted historical order stream as
// OrderSubmit events, assigning ids from the shared sequence. Fills
// against replayed orders reach no agent; they exist to shape the book.
func (s *Simulation) IngestOrderFlow(orders []FlowOrder) error {
	var last common.Time
	for i, flow := range orders {
		if i > 0 && flow.Time < last {
			return fmt.Errorf("%w: order %d at %v after order at %v",
				common.ErrInvalidTime, i, flow.Time, last)
		}
		last = flow.Time

		order := common.Order{
			ID:            s.ctx.NextOrderID(),
			Instrument:    flow.Instrument,
			OrderType:     flow.OrderType,
			Side:          flow.Side,
			Price:         flow.Price,
			StopPrice:     flow.StopPrice,
			Quantity:      flow.Quantity,
			TotalQuantity: flow.Quantity,
			Owner:         flow.Owner,
			Status:        common.Open,
		}
		if _, err := s.ctx.Scheduler.Schedule(flow.Time, sched.OrderSubmit{Order: order}); err != nil {
			return err
		}
	}
	return nil
}
