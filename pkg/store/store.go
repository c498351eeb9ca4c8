// Package store persists reference data (brokers, shareholders,
// security definitions) and an append-only trade history in Pebble.
// The books themselves are memory-only; the store exists for
// onboarding data and the audit trail, not for crash durability of
// in-flight matching.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"bourse/pkg/ledger"
	"bourse/pkg/protocol"
)

// SecurityDef is the reference-data record a security is built from.
type SecurityDef struct {
	ISIN           string `json:"isin"`
	Symbol         string `json:"symbol"`
	LastTradePrice int64  `json:"lastTradePrice"`
}

type brokerRecord struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Credit int64  `json:"credit"`
}

type shareholderRecord struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Positions map[string]int64 `json:"positions"`
}

// Store wraps a Pebble database. All writes are synced.
type Store struct {
	db  *pebble.DB
	seq atomic.Uint64 // trade history sequence
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.seedTradeSeq(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed trade sequence: %w", err)
	}
	return s, nil
}

// seedTradeSeq resumes the trade-history sequence from the highest
// persisted trade key, so reopening appends after the existing audit
// trail instead of overwriting it.
func (s *Store) seedTradeSeq() error {
	prefix := []byte(prefixTrade)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	var highest uint64
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		i := bytes.LastIndexByte(key, ':')
		if i < 0 {
			continue
		}
		seq, err := strconv.ParseUint(string(key[i+1:]), 10, 64)
		if err != nil {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}
	s.seq.Store(highest)
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) set(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SaveBroker persists a broker's identity and current credit.
func (s *Store) SaveBroker(b *ledger.Broker) error {
	return s.set(brokerKey(b.ID), brokerRecord{ID: b.ID, Name: b.Name, Credit: b.Credit()})
}

// SaveShareholder persists a shareholder and its positions.
func (s *Store) SaveShareholder(sh *ledger.Shareholder) error {
	return s.set(shareholderKey(sh.ID), shareholderRecord{
		ID: sh.ID, Name: sh.Name, Positions: sh.Positions(),
	})
}

// SaveSecurity persists a security definition.
func (s *Store) SaveSecurity(def SecurityDef) error {
	return s.set(securityKey(def.ISIN), def)
}

// LoadBrokers returns every persisted broker.
func (s *Store) LoadBrokers() ([]*ledger.Broker, error) {
	var out []*ledger.Broker
	err := s.scan([]byte(prefixBroker), func(data []byte) error {
		var rec brokerRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		out = append(out, ledger.NewBroker(rec.ID, rec.Name, rec.Credit))
		return nil
	})
	return out, err
}

// LoadShareholders returns every persisted shareholder.
func (s *Store) LoadShareholders() ([]*ledger.Shareholder, error) {
	var out []*ledger.Shareholder
	err := s.scan([]byte(prefixShareholder), func(data []byte) error {
		var rec shareholderRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		sh := ledger.NewShareholder(rec.ID, rec.Name)
		for isin, qty := range rec.Positions {
			sh.SetPosition(isin, qty)
		}
		out = append(out, sh)
		return nil
	})
	return out, err
}

// LoadSecurities returns every persisted security definition.
func (s *Store) LoadSecurities() ([]SecurityDef, error) {
	var out []SecurityDef
	err := s.scan([]byte(prefixSecurity), func(data []byte) error {
		var def SecurityDef
		if err := json.Unmarshal(data, &def); err != nil {
			return err
		}
		out = append(out, def)
		return nil
	})
	return out, err
}

// AppendTrade adds a settled trade to the security's history.
func (s *Store) AppendTrade(rec protocol.TradeRecord) error {
	seq := s.seq.Add(1)
	return s.set(tradeKey(rec.Security, seq), rec)
}

// Trades returns up to limit trades for a security in settlement
// order; limit <= 0 means all.
func (s *Store) Trades(isin string, limit int) ([]protocol.TradeRecord, error) {
	var out []protocol.TradeRecord
	err := s.scan(tradePrefix(isin), func(data []byte) error {
		if limit > 0 && len(out) >= limit {
			return nil
		}
		var rec protocol.TradeRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *Store) scan(prefix []byte, fn func(data []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("iterator for %s: %w", prefix, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// RunTradeSink consumes an engine event subscription and persists
// every TradeRecord until the channel closes. Intended to run as a
// background goroutine; persistence errors are reported through errFn
// and do not stop the sink.
func (s *Store) RunTradeSink(events <-chan protocol.Event, errFn func(error)) {
	for ev := range events {
		rec, ok := ev.(protocol.TradeRecord)
		if !ok {
			continue
		}
		if err := s.AppendTrade(rec); err != nil && errFn != nil {
			errFn(err)
		}
	}
}
