// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// Key layout:
//   trade:<seq>      append-only trade log, seq is a zero-padded badger sequence
//   pos:<symbol>     current position per symbol
//   result:<jobID>   backtest result per job
type BadgerStore struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger zerolog.Logger
}

// Open opens (or creates) the store at path.
func Open(path string) (*BadgerStore, error) {
	return open(badger.DefaultOptions(path).WithLogger(nil))
}

// OpenInMemory opens a non-persistent store for tests.
func OpenInMemory() (*BadgerStore, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	seq, err := db.GetSequence([]byte("seq:trades"), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open trade sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, logger: log.WithComponent("store")}, nil
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.logger.Warn().Err(err).Msg("release trade sequence")
	}
	return s.db.Close()
}

func tradeKey(seq uint64) []byte    { return []byte(fmt.Sprintf("trade:%016d", seq)) }
func posKey(symbol string) []byte   { return []byte("pos:" + symbol) }
func resultKey(jobID string) []byte { return []byte("result:" + jobID) }

func (s *BadgerStore) AppendTrade(_ context.Context, rec model.TradeRecord) error {
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tradeKey(n), buf)
	})
}

func (s *BadgerStore) ListTrades(ctx context.Context) ([]model.TradeRecord, error) {
	var out []model.TradeRecord
	err := s.scanPrefix(ctx, "trade:", func(val []byte) error {
		var rec model.TradeRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *BadgerStore) UpsertPosition(_ context.Context, rec model.PositionRecord) error {
	if rec.Symbol == "" {
		return errors.New("upsert position: empty symbol")
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", rec.Symbol, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(posKey(rec.Symbol), buf)
	})
}

func (s *BadgerStore) GetPosition(_ context.Context, symbol string) (model.PositionRecord, error) {
	var out model.PositionRecord
	err := s.get(posKey(symbol), &out)
	return out, err
}

func (s *BadgerStore) ListPositions(ctx context.Context) ([]model.PositionRecord, error) {
	var out []model.PositionRecord
	err := s.scanPrefix(ctx, "pos:", func(val []byte) error {
		var rec model.PositionRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *BadgerStore) PutJobResult(_ context.Context, rec model.BacktestResult) error {
	if rec.JobID == "" {
		return errors.New("put job result: empty job id")
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("put job result %s: %w", rec.JobID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(resultKey(rec.JobID), buf)
	})
}

func (s *BadgerStore) GetJobResult(_ context.Context, jobID string) (model.BacktestResult, error) {
	var out model.BacktestResult
	err := s.get(resultKey(jobID), &out)
	return out, err
}

func (s *BadgerStore) ListJobResults(ctx context.Context) ([]model.BacktestResult, error) {
	var out []model.BacktestResult
	err := s.scanPrefix(ctx, "result:", func(val []byte) error {
		var rec model.BacktestResult
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *BadgerStore) get(key []byte, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *BadgerStore) scanPrefix(ctx context.Context, prefix string, fn func(val []byte) error) error {
	p := []byte(prefix)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ Store = (*BadgerStore)(nil)
