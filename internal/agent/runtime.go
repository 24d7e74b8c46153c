package agent

import (
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"norn/internal/common"
	"norn/internal/feed"
	"norn/internal/sched"
)

// Runtime mediates between strategies and the rest of the core. It owns
// the agent id mapping and is the only component permitted to call into
// agent code, which is what bounds fault isolation: a panicking agent is
// disabled and its orders cancelled, and the simulation continues.
type Runtime struct {
	scheduler *sched.Scheduler
	orderSeq  *common.Sequence

	agents map[common.AgentID]*state
	owners map[common.OrderID]common.AgentID
	// Registration order; map iteration would leak host randomness into
	// the run.
	roster []common.AgentID
}

type openOrder struct {
	instrument common.InstrumentID
	remaining  int64
}

// FillStats aggregates the executions delivered to one agent over a run.
type FillStats struct {
	Fills  int   // number of fills delivered
	Volume int64 // total quantity executed
}

type state struct {
	agent     Agent
	wakeEvery time.Duration
	disabled  bool
	open      map[common.OrderID]*openOrder
	stats     FillStats
}

// New builds the runtime. The order id sequence is shared with ingestion so
// ids stay unique and monotonic across the run.
func New(scheduler *sched.Scheduler, orderSeq *common.Sequence) *Runtime {
	return &Runtime{
		scheduler: scheduler,
		orderSeq:  orderSeq,
		agents:    make(map[common.AgentID]*state),
		owners:    make(map[common.OrderID]common.AgentID),
	}
}

// Register adds an agent. A positive wakeEvery schedules recurring wakeups,
// the first one wakeEvery after the current simulation time.
func (r *Runtime) Register(agent Agent, wakeEvery time.Duration) error {
	id := agent.ID()
	if _, ok := r.agents[id]; ok {
		return fmt.Errorf("%w: duplicate agent id %s", common.ErrValidation, id)
	}
	st := &state{
		agent:     agent,
		wakeEvery: wakeEvery,
		open:      make(map[common.OrderID]*openOrder),
	}
	r.agents[id] = st
	r.roster = append(r.roster, id)

	if wakeEvery > 0 {
		r.scheduleWakeup(id, r.scheduler.Now().Add(wakeEvery))
	}
	return nil
}

// Roster returns agent ids in registration order.
func (r *Runtime) Roster() []common.AgentID {
	return slices.Clone(r.roster)
}

// Disabled reports whether an agent has been shut off by a fault.
func (r *Runtime) Disabled(id common.AgentID) bool {
	st, ok := r.agents[id]
	return ok && st.disabled
}

// Stats returns an agent's aggregate fill count and executed volume.
func (r *Runtime) Stats(id common.AgentID) FillStats {
	st, ok := r.agents[id]
	if !ok {
		return FillStats{}
	}
	return st.stats
}

// OpenOrders returns the ids of an agent's live orders, ascending.
func (r *Runtime) OpenOrders(id common.AgentID) []common.OrderID {
	st, ok := r.agents[id]
	if !ok {
		return nil
	}
	ids := make([]common.OrderID, 0, len(st.open))
	for orderID := range st.open {
		ids = append(ids, orderID)
	}
	slices.Sort(ids)
	return ids
}

// MarketDataSubscriber adapts one agent into a feed subscriber. Delivery
// runs under the same fault guard as every other agent entry point.
func (r *Runtime) MarketDataSubscriber(id common.AgentID) feed.Subscriber {
	return marketDataAdapter{runtime: r, id: id}
}

type marketDataAdapter struct {
	runtime *Runtime
	id      common.AgentID
}

func (a marketDataAdapter) OnMarketEvent(ev common.MarketEvent) {
	st, ok := a.runtime.agents[a.id]
	if !ok || st.disabled {
		return
	}
	a.runtime.guard(st, func() []OrderIntent {
		st.agent.OnMarketData(ev)
		return nil
	})
}

// HandleWakeup dispatches an AgentWakeup event: the agent acts, its intents
// are scheduled at the current time, and the next wakeup is booked.
func (r *Runtime) HandleWakeup(id common.AgentID) {
	st, ok := r.agents[id]
	if !ok || st.disabled {
		return
	}
	now := r.scheduler.Now()
	intents, alive := r.guard(st, func() []OrderIntent {
		return st.agent.OnWakeup(now)
	})
	if alive {
		r.translate(st, intents)
	}
	// Translation can fault too (a panicking observer); no more wakeups then.
	if !st.disabled && st.wakeEvery > 0 {
		r.scheduleWakeup(id, now.Add(st.wakeEvery))
	}
}

// HandleTrades routes fills to the owners of both referenced orders and
// keeps the open-order ledger in step. Trades arrive in execution order and
// fills are delivered in that same order, buy side first.
func (r *Runtime) HandleTrades(trades []common.Trade) {
	for _, trade := range trades {
		r.deliverFill(trade.BuyOrderID, trade)
		r.deliverFill(trade.SellOrderID, trade)
	}
}

func (r *Runtime) deliverFill(id common.OrderID, trade common.Trade) {
	st, open := r.findOpen(id)
	if st == nil {
		// Ingestion-synthesized order, nobody to notify.
		return
	}
	st.stats.Fills++
	st.stats.Volume += trade.Quantity
	open.remaining -= trade.Quantity
	if open.remaining <= 0 {
		delete(st.open, id)
		delete(r.owners, id)
	}
	if st.disabled {
		return
	}
	intents, alive := r.guard(st, func() []OrderIntent {
		return st.agent.OnFill(trade)
	})
	if alive {
		r.translate(st, intents)
	}
}

// HandleCancelled retires a cancelled order from its owner's ledger and tells
// owners that listen.
func (r *Runtime) HandleCancelled(order common.Order) {
	st, ok := r.agents[order.Owner]
	if !ok {
		return
	}
	delete(st.open, order.ID)
	delete(r.owners, order.ID)
	if st.disabled {
		return
	}
	if obs, observes := st.agent.(CancelObserver); observes {
		r.guard(st, func() []OrderIntent {
			obs.OrderCancelled(order.ID)
			return nil
		})
	}
}

// HandleRejected retires a rejected order and tells owners that listen.
func (r *Runtime) HandleRejected(order common.Order, cause error) {
	st, ok := r.agents[order.Owner]
	if !ok {
		return
	}
	delete(st.open, order.ID)
	delete(r.owners, order.ID)
	log.Debug().
		Uint64("order", uint64(order.ID)).
		Str("agent", string(order.Owner)).
		Err(cause).
		Msg("order rejected")
	if st.disabled {
		return
	}
	if obs, observes := st.agent.(RejectObserver); observes {
		r.guard(st, func() []OrderIntent {
			obs.OrderRejected(order.ID, cause)
			return nil
		})
	}
}

// translate turns intents into OrderSubmit/OrderCancel events at the
// current simulation time and records ownership of new orders.
func (r *Runtime) translate(st *state, intents []OrderIntent) {
	now := r.scheduler.Now()
	for _, intent := range intents {
		// A fault mid-batch (a panicking observer) disables the agent; the
		// rest of the batch stays unscheduled so it cannot outlive the
		// fault's cancel sweep.
		if st.disabled {
			return
		}
		switch intent.Kind {
		case SubmitIntent:
			id := common.OrderID(r.orderSeq.Next())
			order := common.Order{
				ID:            id,
				Instrument:    intent.Instrument,
				OrderType:     intent.OrderType,
				Side:          intent.Side,
				Price:         intent.Price,
				StopPrice:     intent.StopPrice,
				Quantity:      intent.Quantity,
				TotalQuantity: intent.Quantity,
				Owner:         st.agent.ID(),
				Status:        common.Open,
			}
			if _, err := r.scheduler.Schedule(now, sched.OrderSubmit{Order: order}); err != nil {
				log.Error().Err(err).Msg("failed scheduling order submit")
				continue
			}
			st.open[id] = &openOrder{instrument: intent.Instrument, remaining: intent.Quantity}
			r.owners[id] = st.agent.ID()
			if obs, observes := st.agent.(OrderObserver); observes {
				r.guard(st, func() []OrderIntent {
					obs.OrderPlaced(id, intent)
					return nil
				})
			}
		case CancelIntent:
			_, err := r.scheduler.Schedule(now, sched.OrderCancel{
				Instrument: intent.Instrument,
				OrderID:    intent.OrderID,
				Owner:      st.agent.ID(),
			})
			if err != nil {
				log.Error().Err(err).Msg("failed scheduling order cancel")
			}
		}
	}
}

func (r *Runtime) scheduleWakeup(id common.AgentID, at common.Time) {
	if _, err := r.scheduler.Schedule(at, sched.AgentWakeup{Agent: id}); err != nil {
		log.Error().Err(err).Str("agent", string(id)).Msg("failed scheduling wakeup")
	}
}

// guard runs an agent callback under panic isolation. On a fault the agent
// is disabled for the rest of the run and cancels for all of its live
// orders are scheduled; other agents are untouched.
func (r *Runtime) guard(st *state, fn func() []OrderIntent) (intents []OrderIntent, alive bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fault(st, rec)
			intents, alive = nil, false
		}
	}()
	return fn(), true
}

func (r *Runtime) fault(st *state, cause any) {
	if st.disabled {
		return
	}
	st.disabled = true
	log.Error().
		Str("agent", string(st.agent.ID())).
		Err(fmt.Errorf("%w: %v", common.ErrAgentFault, cause)).
		Msg("agent fault, disabling")

	now := r.scheduler.Now()
	ids := make([]common.OrderID, 0, len(st.open))
	for id := range st.open {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		open := st.open[id]
		_, err := r.scheduler.Schedule(now, sched.OrderCancel{
			Instrument: open.instrument,
			OrderID:    id,
			Owner:      st.agent.ID(),
		})
		if err != nil {
			log.Error().Err(err).Uint64("order", uint64(id)).Msg("failed scheduling fault cancel")
		}
	}
}

func (r *Runtime) findOpen(id common.OrderID) (*state, *openOrder) {
	owner, ok := r.owners[id]
	if !ok {
		return nil, nil
	}
	st := r.agents[owner]
	open, ok := st.open[id]
	if !ok {
		return nil, nil
	}
	return st, open
}
