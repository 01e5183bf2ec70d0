// ABOUTME: Charm KV storage engine with automatic cloud sync.
// ABOUTME: Records live under <table>:<id> keys and sync after every write.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"

	"github.com/harperreed/forma/internal/models"
)

// Charm defaults.
const (
	CharmDBName = "forma"
	CharmHost   = "charm.2389.dev"
)

// CharmEngine stores records in an end-to-end encrypted Charm KV database.
// GetAll returns records in key order.
type CharmEngine struct {
	kv       *kv.KV
	autoSync bool
	mu       sync.RWMutex
}

// CharmOptions configures OpenCharm.
type CharmOptions struct {
	DBName   string
	Host     string
	AutoSync bool
}

// OpenCharm opens the Charm KV database and pulls remote data unless
// another process holds the lock.
func OpenCharm(opts CharmOptions) (*CharmEngine, error) {
	if opts.DBName == "" {
		opts.DBName = CharmDBName
	}
	if opts.Host == "" {
		opts.Host = CharmHost
	}
	if os.Getenv("CHARM_HOST") == "" {
		if err := os.Setenv("CHARM_HOST", opts.Host); err != nil {
			return nil, err
		}
	}

	db, err := kv.OpenWithDefaultsFallback(opts.DBName)
	if err != nil {
		return nil, fmt.Errorf("open charm kv: %w", err)
	}

	e := &CharmEngine{kv: db, autoSync: opts.AutoSync}
	if !db.IsReadOnly() {
		_ = db.Sync()
	}
	return e, nil
}

// CharmOpener returns an Opener for OpenCharm.
func CharmOpener(opts CharmOptions) Opener {
	return func(ctx context.Context) (Engine, error) {
		return OpenCharm(opts)
	}
}

func (e *CharmEngine) Name() string { return "charm" }

func (e *CharmEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kv != nil {
		return e.kv.Close()
	}
	return nil
}

// IsReadOnly returns true if the database is open in read-only mode.
// This happens when another process (like an MCP server) holds the lock.
func (e *CharmEngine) IsReadOnly() bool {
	return e.kv.IsReadOnly()
}

// Sync synchronizes local state with Charm Cloud.
func (e *CharmEngine) Sync() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.kv.IsReadOnly() {
		return nil
	}
	return e.kv.Sync()
}

// SetAutoSync enables or disables automatic sync after writes.
func (e *CharmEngine) SetAutoSync(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoSync = enabled
}

// ID returns the Charm user ID for the current account.
func (e *CharmEngine) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("create charm client: %w", err)
	}
	return cc.ID()
}

// Reset wipes local data and rebuilds from Charm Cloud.
func (e *CharmEngine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kv.Reset()
}

func (e *CharmEngine) syncIfEnabled() {
	if e.autoSync && !e.kv.IsReadOnly() {
		_ = e.kv.Sync()
	}
}

func (e *CharmEngine) GetAll(ctx context.Context, table models.Table) ([][]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys, err := e.kv.Keys()
	if err != nil {
		return nil, err
	}

	prefix := tablePrefix(table)
	var out [][]byte
	for _, key := range keys {
		if !bytes.HasPrefix(key, prefix) {
			continue
		}
		val, err := e.kv.Get(key)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func (e *CharmEngine) Get(ctx context.Context, table models.Table, id string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.get(recordKey(table, id))
}

func (e *CharmEngine) get(key []byte) ([]byte, error) {
	val, err := e.kv.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return val, err
}

func (e *CharmEngine) Put(ctx context.Context, table models.Table, id string, data []byte) error {
	return e.set(recordKey(table, id), data)
}

func (e *CharmEngine) Delete(ctx context.Context, table models.Table, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.kv.IsReadOnly() {
		return ErrReadOnly
	}
	if err := e.kv.Delete(recordKey(table, id)); err != nil {
		return err
	}
	e.syncIfEnabled()
	return nil
}

func (e *CharmEngine) Flag(ctx context.Context, name string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	val, err := e.get(flagKey(name))
	if err != nil {
		return false, err
	}
	return string(val) == "1", nil
}

func (e *CharmEngine) SetFlag(ctx context.Context, name string, value bool) error {
	return e.set(flagKey(name), flagValue(value))
}

func (e *CharmEngine) set(key, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.kv.IsReadOnly() {
		return ErrReadOnly
	}
	if err := e.kv.Set(key, data); err != nil {
		return err
	}
	e.syncIfEnabled()
	return nil
}
