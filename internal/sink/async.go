package sink

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"norn/internal/common"
)

const journalChanSize = 1024

type recordKind int

const (
	tradeRecord recordKind = iota
	orderRecord
)

type record struct {
	kind  recordKind
	seq   uint64
	trade common.Trade
	order common.Order
}

// Journal decouples the dispatch path from storage: records are queued
// fire-and-forget and a single writer goroutine applies them to the store
// in queue order, which preserves the append-only sequence. A write error
// kills the writer; remaining records are dropped, the run itself keeps
// going (the core never depends on sink acknowledgment).
type Journal struct {
	t       tomb.Tomb
	records chan record
	store   Store
	seq     common.Sequence
}

// NewJournal starts the writer over the given store.
func NewJournal(store Store) *Journal {
	j := &Journal{
		records: make(chan record, journalChanSize),
		store:   store,
	}
	j.t.Go(j.writer)
	return j
}

func (j *Journal) JournalTrade(trade common.Trade) {
	j.enqueue(record{kind: tradeRecord, seq: j.seq.Next(), trade: trade})
}

func (j *Journal) JournalOrder(order common.Order) {
	j.enqueue(record{kind: orderRecord, seq: j.seq.Next(), order: order})
}

func (j *Journal) enqueue(rec record) {
	select {
	case <-j.t.Dying():
		// Writer is gone; nothing left to receive the record.
	case j.records <- rec:
	}
}

// Close drains outstanding records, stops the writer and closes the store.
func (j *Journal) Close() error {
	close(j.records)
	err := j.t.Wait()
	if closeErr := j.store.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (j *Journal) writer() error {
	for rec := range j.records {
		var err error
		switch rec.kind {
		case tradeRecord:
			err = j.store.WriteTrade(rec.seq, rec.trade)
		case orderRecord:
			err = j.store.WriteOrder(rec.seq, rec.order)
		}
		if err != nil {
			log.Error().Err(err).Uint64("seq", rec.seq).Msg("journal writer exiting")
			return err
		}
	}
	return nil
}
