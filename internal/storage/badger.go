// ABOUTME: Badger storage engine backed by an embedded LSM key-value store.
// ABOUTME: Keys are <table>:<id>; insertion order is kept with a sequence index.
package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/harperreed/forma/internal/models"
)

// BadgerEngine stores records in a Badger database directory.
//
// Each record value is prefixed with an 8-byte big-endian sequence number
// assigned on first insert, so GetAll can return insertion order.
type BadgerEngine struct {
	mu  sync.Mutex // serializes writes; Put reads before it writes
	db  *badger.DB
	seq *badger.Sequence
	dir string
}

// OpenBadger opens or creates a Badger database in dir.
func OpenBadger(dir string) (*BadgerEngine, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence([]byte("meta:seq"), 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sequence: %w", err)
	}

	return &BadgerEngine{db: db, seq: seq, dir: dir}, nil
}

// BadgerOpener returns an Opener for the database in dir.
func BadgerOpener(dir string) Opener {
	return func(ctx context.Context) (Engine, error) {
		return OpenBadger(dir)
	}
}

func (e *BadgerEngine) Name() string { return "badger" }

func (e *BadgerEngine) Close() error {
	if e.seq != nil {
		_ = e.seq.Release()
	}
	return e.db.Close()
}

type seqValue struct {
	seq  uint64
	data []byte
}

func (e *BadgerEngine) GetAll(ctx context.Context, table models.Table) ([][]byte, error) {
	var vals []seqValue
	err := e.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := tablePrefix(table)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			seq, data, err := splitSeq(raw)
			if err != nil {
				return err
			}
			vals = append(vals, seqValue{seq: seq, data: data})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(vals, func(i, j int) bool { return vals[i].seq < vals[j].seq })
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = v.data
	}
	return out, nil
}

func (e *BadgerEngine) Get(ctx context.Context, table models.Table, id string) ([]byte, error) {
	var data []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(table, id))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		_, data, err = splitSeq(raw)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return data, err
}

func (e *BadgerEngine) Put(ctx context.Context, table models.Table, id string, data []byte) error {
	key := recordKey(table, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Update(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get(key)
		switch {
		case err == nil:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if seq, _, err = splitSeq(raw); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			if seq, err = e.seq.Next(); err != nil {
				return err
			}
		default:
			return err
		}
		return txn.Set(key, joinSeq(seq, data))
	})
}

func (e *BadgerEngine) Delete(ctx context.Context, table models.Table, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(table, id))
	})
}

func (e *BadgerEngine) Flag(ctx context.Context, name string) (bool, error) {
	var set bool
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(flagKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			set = string(val) == "1"
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return set, err
}

func (e *BadgerEngine) SetFlag(ctx context.Context, name string, value bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(flagKey(name), flagValue(value))
	})
}

func joinSeq(seq uint64, data []byte) []byte {
	out := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(out, seq)
	copy(out[8:], data)
	return out
}

func splitSeq(raw []byte) (uint64, []byte, error) {
	if len(raw) < 8 {
		return 0, nil, fmt.Errorf("corrupt record value (%d bytes)", len(raw))
	}
	return binary.BigEndian.Uint64(raw[:8]), raw[8:], nil
}
