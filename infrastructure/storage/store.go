// Package storage persists the chat entities in BadgerDB.
//
// Every mutation runs inside Store.Update. Badger tracks the keys a transaction
// reads and refuses to commit it when one of them was written by a concurrent
// transaction (badger.ErrConflict). Update replays the whole closure in that
// case, so a read-check-write sequence on a room counter or an invite flag
// behaves like a compare-and-swap.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"wagl-backend/errors"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
)

const DefaultMaxRetries = 64

type Store struct {
	db         *badger.DB
	log        *slog.Logger
	maxRetries int
}

func NewStore(db *badger.DB, log *slog.Logger, maxRetries int) *Store {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Store{db: db, log: log, maxRetries: maxRetries}
}

// Update runs fn in a read-write transaction and retries it on conflict.
// The context is checked before commit: a cancelled call leaves nothing behind.
// fn may run several times and must not keep state across attempts.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			if err := fn(&Tx{txn: txn}); err != nil {
				return err
			}
			return ctx.Err()
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt >= s.maxRetries {
			return fmt.Errorf("transaction retries exhausted after %d attempts: %w", attempt+1, err)
		}
		s.log.Debug("Transaction conflict, retrying", "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn})
	})
}

func backoff(attempt int) time.Duration {
	base := time.Duration(min(attempt, 10)+1) * 100 * time.Microsecond
	return base + time.Duration(rand.Int64N(int64(base)))
}

// Tx exposes typed accessors over a single Badger transaction.
type Tx struct {
	txn *badger.Txn
}

type kv struct {
	key   string
	value []byte
}

func (tx *Tx) get(key string, v any) error {
	item, err := tx.txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func (tx *Tx) getString(key string) (string, error) {
	item, err := tx.txn.Get([]byte(key))
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func (tx *Tx) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return tx.txn.Set([]byte(key), data)
}

func (tx *Tx) putString(key, value string) error {
	return tx.txn.Set([]byte(key), []byte(value))
}

func (tx *Tx) delete(key string) error {
	return tx.txn.Delete([]byte(key))
}

// scan copies every entry under prefix. The iterator is closed before
// returning, so callers may issue further reads and writes on the results.
func (tx *Tx) scan(prefix string, reverse bool, seek string, limit int) ([]kv, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.Reverse = reverse
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	start := []byte(prefix)
	if seek != "" {
		start = []byte(seek)
	} else if reverse {
		// Reverse iteration starts from the last key sharing the prefix
		start = append([]byte(prefix), 0xFF)
	}

	var entries []kv
	for it.Seek(start); it.ValidForPrefix(opts.Prefix); it.Next() {
		if limit > 0 && len(entries) == limit {
			break
		}
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		entries = append(entries, kv{key: string(item.KeyCopy(nil)), value: val})
	}
	return entries, nil
}

func decode[T any](entries []kv) ([]T, error) {
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.value, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, badger.ErrKeyNotFound)
}
