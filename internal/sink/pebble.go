package sink

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"norn/internal/common"
)

// Store is the durable backend behind the async journal. Writes arrive in
// journal order with a per-run monotonic sequence.
type Store interface {
	WriteTrade(seq uint64, trade common.Trade) error
	WriteOrder(seq uint64, order common.Order) error
	Close() error
}

// PebbleStore journals records into an embedded pebble database. Keys are
// `t/<run>/<seq>` for trades and `o/<run>/<seq>` for order status changes,
// values JSON, so a run's history reads back as one ordered range scan.
type PebbleStore struct {
	db  *pebble.DB
	run uuid.UUID
}

// OpenPebble opens (or creates) the journal database at path and starts a
// fresh run id.
func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db at %s: %w", path, err)
	}
	return &PebbleStore{db: db, run: uuid.New()}, nil
}

// Run returns the run id stamped into every key.
func (s *PebbleStore) Run() uuid.UUID { return s.run }

func (s *PebbleStore) WriteTrade(seq uint64, trade common.Trade) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	if err := s.db.Set(s.key('t', seq), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to journal trade: %w", err)
	}
	return nil
}

func (s *PebbleStore) WriteOrder(seq uint64, order common.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(s.key('o', seq), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to journal order: %w", err)
	}
	return nil
}

// Close flushes everything written with NoSync and closes the database.
func (s *PebbleStore) Close() error {
	if err := s.db.Flush(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	return s.db.Close()
}

func (s *PebbleStore) key(kind byte, seq uint64) []byte {
	key := make([]byte, 0, 2+16+1+8)
	key = append(key, kind, '/')
	key = append(key, s.run[:]...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}
