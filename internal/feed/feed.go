package feed

import (
	"github.com/google/uuid"

	"norn/internal/common"
)

// Subscriber receives market events synchronously. Implementations must not
// block: delivery happens inside the event dispatch and must complete
// before the next queued event runs.
type Subscriber interface {
	OnMarketEvent(ev common.MarketEvent)
}

// Subscription identifies one subscriber's registration on one instrument.
type Subscription struct {
	ID         uuid.UUID
	Instrument common.InstrumentID
}

type entry struct {
	id         uuid.UUID
	subscriber Subscriber
}

// Feed fans book deltas and trade prints out to subscribers. Publication
// order is exactly the order the matching engine produced the underlying
// mutations; the feed performs no reordering or batching. Subscribers are
// delivered to in subscription order, which keeps fan-out deterministic.
type Feed struct {
	subs map[common.InstrumentID][]entry
}

// New builds an empty feed.
func New() *Feed {
	return &Feed{subs: make(map[common.InstrumentID][]entry)}
}

// Subscribe registers a subscriber for one instrument's events.
func (f *Feed) Subscribe(instrument common.InstrumentID, subscriber Subscriber) Subscription {
	sub := Subscription{ID: uuid.New(), Instrument: instrument}
	f.subs[instrument] = append(f.subs[instrument], entry{id: sub.ID, subscriber: subscriber})
	return sub
}

// Unsubscribe removes a registration. Returns false if it was already gone.
func (f *Feed) Unsubscribe(sub Subscription) bool {
	entries := f.subs[sub.Instrument]
	for i, e := range entries {
		if e.id != sub.ID {
			continue
		}
		f.subs[sub.Instrument] = append(entries[:i], entries[i+1:]...)
		return true
	}
	return false
}

// Publish delivers one event to every subscriber of its instrument before
// returning. No overlap with the next publication is possible: the core is
// single-threaded and the feed never defers delivery.
func (f *Feed) Publish(ev common.MarketEvent) {
	for _, e := range f.subs[ev.EventInstrument()] {
		e.subscriber.OnMarketEvent(ev)
	}
}

// PublishAll publishes a batch in order.
func (f *Feed) PublishAll(events []common.MarketEvent) {
	for _, ev := range events {
		f.Publish(ev)
	}
}
