// ABOUTME: Engine interface for record storage backends.
// ABOUTME: Engines store raw JSON records keyed by table and id, plus boolean flags.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/forma/internal/models"
)

// Engine is the contract every storage backend implements.
// Get returns (nil, nil) for a missing key, Delete of a missing key is a
// no-op and Put replaces any existing record with the same id.
type Engine interface {
	Name() string
	GetAll(ctx context.Context, table models.Table) ([][]byte, error)
	Get(ctx context.Context, table models.Table, id string) ([]byte, error)
	Put(ctx context.Context, table models.Table, id string, data []byte) error
	Delete(ctx context.Context, table models.Table, id string) error
	Flag(ctx context.Context, name string) (bool, error)
	SetFlag(ctx context.Context, name string, value bool) error
	Close() error
}

// Opener opens an engine. Store.Initialize calls it at most once.
type Opener func(ctx context.Context) (Engine, error)

var (
	// ErrUninitialized is returned by Store methods called before Initialize.
	ErrUninitialized = errors.New("store not initialized")

	// ErrUnknownTable is returned for table names outside models.AllTables.
	ErrUnknownTable = errors.New("unknown table")

	// ErrReadOnly is returned when writing to an engine opened read-only.
	ErrReadOnly = errors.New("database is locked by another process")
)

// IOError wraps a failure reported by the underlying engine.
type IOError struct {
	Op    string
	Table models.Table
	Err   error
}

func (e *IOError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func checkTable(table models.Table) error {
	if !models.IsValidTable(string(table)) {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}

// recordKey is the key layout shared by the key-value engines.
func recordKey(table models.Table, id string) []byte {
	return []byte(string(table) + ":" + id)
}

func tablePrefix(table models.Table) []byte {
	return []byte(string(table) + ":")
}

func flagKey(name string) []byte {
	return []byte("flag:" + name)
}

func flagValue(v bool) []byte {
	if v {
		return []byte("1")
	}
	return []byte("0")
}
