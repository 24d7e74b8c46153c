package sim

import (
	"fmt"
	"slices"

	"norn/internal/book"
	"norn/internal/common"
	"norn/internal/engine"
	"norn/internal/feed"
	"norn/internal/sched"
	"norn/internal/sink"
)

// Shard is one instrument's book and matching engine. A shard is a pure
// data owner: only the scheduler thread ever calls into it, so cross-shard
// timing stays a function of the shared event queue.
type Shard struct {
	Instrument common.Instrument
	Book       *book.OrderBook
	Engine     *engine.Engine
}

// Context holds every registry the simulation needs: instrument shards,
// the shared scheduler, the agent runtime, feed and sink. It is built once
// by New and passed by reference; there is no ambient global state anywhere
// in the core.
type Context struct {
	Scheduler *sched.Scheduler
	Feed      *feed.Feed
	Sink      sink.Sink

	shards map[common.InstrumentID]*Shard
	// Instrument ids in registration order, for deterministic iteration.
	instruments []common.InstrumentID

	orderSeq common.Sequence
	tradeSeq common.Sequence
}

func newContext(instruments []common.Instrument, journal sink.Sink) (*Context, error) {
	if journal == nil {
		journal = sink.Nop{}
	}
	ctx := &Context{
		Scheduler: sched.New(),
		Feed:      feed.New(),
		Sink:      journal,
		shards:    make(map[common.InstrumentID]*Shard),
	}

	for _, ins := range instruments {
		if ins.Tick <= 0 || ins.Lot <= 0 {
			return nil, fmt.Errorf("%w: instrument %s needs positive tick and lot",
				common.ErrValidation, ins.ID)
		}
		if _, ok := ctx.shards[ins.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate instrument %s", common.ErrValidation, ins.ID)
		}
		b := book.New(ins)
		shard := &Shard{Instrument: ins, Book: b}
		shard.Engine = engine.New(b, ctx.Scheduler.Now, &ctx.tradeSeq, ctx.triggerFor(ins.ID))
		ctx.shards[ins.ID] = shard
		ctx.instruments = append(ctx.instruments, ins.ID)
	}
	if len(ctx.instruments) == 0 {
		return nil, fmt.Errorf("%w: no instruments", common.ErrValidation)
	}
	return ctx, nil
}

// triggerFor enqueues a converted stop order as a fresh event at the
// current simulation time. The new event's sequence number places it after
// everything already queued at that timestamp, which is the tie-break the
// replay contract depends on.
func (ctx *Context) triggerFor(common.InstrumentID) engine.TriggerFunc {
	return func(converted common.Order) {
		if _, err := ctx.Scheduler.Schedule(ctx.Scheduler.Now(), sched.OrderSubmit{Order: converted}); err != nil {
			// Now() is never in the past; reaching here means a scheduler bug.
			panic(err)
		}
	}
}

// Shard looks up an instrument shard.
func (ctx *Context) Shard(id common.InstrumentID) (*Shard, bool) {
	shard, ok := ctx.shards[id]
	return shard, ok
}

// Instruments returns instrument ids in registration order.
func (ctx *Context) Instruments() []common.InstrumentID {
	return slices.Clone(ctx.instruments)
}

// NextOrderID assigns the next order id; shared by the agent runtime and
// order-flow ingestion.
func (ctx *Context) NextOrderID() common.OrderID {
	return common.OrderID(ctx.orderSeq.Next())
}

// OrderSeq exposes the shared order id sequence.
func (ctx *Context) OrderSeq() *common.Sequence { return &ctx.orderSeq }
