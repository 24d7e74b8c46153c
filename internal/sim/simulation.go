package sim

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"norn/internal/agent"
	"norn/internal/common"
	"norn/internal/sched"
	"norn/internal/sink"
)

// Config assembles a run.
type Config struct {
	Instruments []common.Instrument
	Sink        sink.Sink // nil means discard
}

// Simulation is the top-level runner and control surface. The whole core is
// logically single-threaded: exactly one event dispatches at a time, and
// all matching, feed fan-out and agent callbacks for that event complete
// before the next one is considered. That serialization, plus the
// scheduler's (time, sequence) total order, is what makes replays
// bit-for-bit identical.
type Simulation struct {
	ctx     *Context
	runtime *agent.Runtime

	trades     []common.Trade
	dispatched int
	// stopped is the only piece of state touched from outside the
	// dispatch thread: Stop is the control surface's kill switch.
	stopped atomic.Bool
}

// New builds the simulation context and agent runtime. No events run until
// Start or Step.
func New(cfg Config) (*Simulation, error) {
	ctx, err := newContext(cfg.Instruments, cfg.Sink)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		ctx:     ctx,
		runtime: agent.New(ctx.Scheduler, ctx.OrderSeq()),
	}, nil
}

// Context exposes the simulation context, mainly for ingestion and tests.
func (s *Simulation) Context() *Context { return s.ctx }

// Runtime exposes the agent runtime.
func (s *Simulation) Runtime() *agent.Runtime { return s.runtime }

// Now returns the current simulated time.
func (s *Simulation) Now() common.Time { return s.ctx.Scheduler.Now() }

// Trades returns the run's trade log in execution order.
func (s *Simulation) Trades() []common.Trade { return s.trades }

// Dispatched returns the number of events dispatched so far.
func (s *Simulation) Dispatched() int { return s.dispatched }

// AgentStats returns an agent's aggregate fill count and executed volume.
func (s *Simulation) AgentStats(id common.AgentID) agent.FillStats {
	return s.runtime.Stats(id)
}

// RegisterAgent adds a strategy, books its recurring wakeups and subscribes
// it to market data for the given instruments.
func (s *Simulation) RegisterAgent(a agent.Agent, wakeEvery time.Duration, instruments ...common.InstrumentID) error {
	if err := s.runtime.Register(a, wakeEvery); err != nil {
		return err
	}
	for _, id := range instruments {
		if _, ok := s.ctx.Shard(id); !ok {
			return common.ErrUnknownInstrument
		}
		s.ctx.Feed.Subscribe(id, s.runtime.MarketDataSubscriber(a.ID()))
	}
	return nil
}

// Start runs the event loop until the queue drains, the next event lies
// beyond the horizon, or Stop is called. Returns the number of events
// dispatched by this call.
func (s *Simulation) Start(horizon common.Time) int {
	s.stopped.Store(false)
	ran := 0
	for !s.stopped.Load() {
		next, ok := s.ctx.Scheduler.NextTime()
		if !ok || next > horizon {
			break
		}
		s.ctx.Scheduler.Step(s.dispatch)
		ran++
	}
	log.Info().
		Int("events", ran).
		Int("trades", len(s.trades)).
		Stringer("clock", s.Now()).
		Msg("simulation run finished")
	return ran
}

// Step dispatches exactly one event. Exposed for debugging and tooling.
func (s *Simulation) Step() bool {
	return s.ctx.Scheduler.Step(s.dispatch)
}

// Stop halts the loop between events; the event being dispatched always
// runs to completion.
func (s *Simulation) Stop() { s.stopped.Store(true) }

// Close flushes the sink.
func (s *Simulation) Close() error { return s.ctx.Sink.Close() }

// dispatch routes one popped event to its component. Everything below here
// runs synchronously inside the event's turn.
func (s *Simulation) dispatch(ev sched.Event) {
	s.dispatched++
	switch payload := ev.Payload.(type) {
	case sched.OrderSubmit:
		s.handleSubmit(payload.Order)
	case sched.OrderCancel:
		s.handleCancel(payload)
	case sched.AgentWakeup:
		s.runtime.HandleWakeup(payload.Agent)
	case sched.MarketDataDispatch:
		s.handleMark(payload)
	default:
		log.Error().Type("payload", payload).Msg("unknown event payload")
	}
}

func (s *Simulation) handleSubmit(order common.Order) {
	shard, ok := s.ctx.Shard(order.Instrument)
	if !ok {
		order.Status = common.Rejected
		s.runtime.HandleRejected(order, common.ErrUnknownInstrument)
		s.ctx.Sink.JournalOrder(order)
		return
	}

	final, trades, err := shard.Engine.Submit(order)
	s.ctx.Feed.PublishAll(shard.Engine.TakeEvents())

	for _, trade := range trades {
		s.trades = append(s.trades, trade)
		s.ctx.Sink.JournalTrade(trade)
	}
	// The resting side's transitions (PartiallyFilled, Filled) belong to the
	// status-change stream just like the aggressor's final state.
	for _, changed := range shard.Engine.TakeOrderChanges() {
		s.ctx.Sink.JournalOrder(changed)
	}
	s.ctx.Sink.JournalOrder(final)
	if len(trades) > 0 {
		s.runtime.HandleTrades(trades)
	}

	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation),
			errors.Is(err, common.ErrUnknownInstrument),
			errors.Is(err, common.ErrNotEnoughLiquidity):
			s.runtime.HandleRejected(final, err)
		default:
			// Corruption or a halted shard; the engine already logged it.
			// Other instruments keep running.
		}
	}
}

func (s *Simulation) handleCancel(payload sched.OrderCancel) {
	shard, ok := s.ctx.Shard(payload.Instrument)
	if !ok {
		log.Debug().
			Str("instrument", string(payload.Instrument)).
			Msg("cancel for unknown instrument")
		return
	}

	order, err := shard.Engine.Cancel(payload.OrderID)
	s.ctx.Feed.PublishAll(shard.Engine.TakeEvents())
	if err != nil {
		// NotFound is the idempotent case: already filled or cancelled.
		if !errors.Is(err, common.ErrNotFound) && !errors.Is(err, common.ErrHalted) {
			log.Error().Err(err).Uint64("order", uint64(payload.OrderID)).Msg("cancel failed")
		}
		return
	}
	s.runtime.HandleCancelled(order)
	s.ctx.Sink.JournalOrder(order)
}

func (s *Simulation) handleMark(payload sched.MarketDataDispatch) {
	shard, ok := s.ctx.Shard(payload.Instrument)
	if !ok {
		log.Debug().
			Str("instrument", string(payload.Instrument)).
			Msg("mark print for unknown instrument")
		return
	}
	if err := shard.Engine.MarkPrice(payload.Price); err != nil {
		log.Error().Err(err).Int64("price", payload.Price).Msg("mark print rejected")
	}
	s.ctx.Feed.PublishAll(shard.Engine.TakeEvents())
}
