// ABOUTME: Flat fallback engine storing each table as one JSON array string.
// ABOUTME: Used when no durable engine can be opened.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/harperreed/forma/internal/models"
)

const flatPrefix = "forma-"

// FlatEngine keeps table "<t>" under key "forma-<t>" as a JSON array and
// flag "<f>" under "forma-flag-<f>". Upserts replace in place or append, so
// GetAll returns insertion order.
type FlatEngine struct {
	mu   sync.Mutex
	kv   KeyValue
	name string
}

// NewFlatEngine wraps a KeyValue store.
func NewFlatEngine(kv KeyValue) *FlatEngine {
	name := "flat"
	if _, ok := kv.(*MemoryKV); ok {
		name = "memory"
	}
	return &FlatEngine{kv: kv, name: name}
}

// MemoryOpener opens a fresh in-memory flat engine.
func MemoryOpener() Opener {
	return func(ctx context.Context) (Engine, error) {
		return NewFlatEngine(NewMemoryKV()), nil
	}
}

// FlatDirOpener opens a flat engine persisted under dir.
func FlatDirOpener(dir string) Opener {
	return func(ctx context.Context) (Engine, error) {
		kv, err := NewDirKV(dir)
		if err != nil {
			return nil, err
		}
		return NewFlatEngine(kv), nil
	}
}

func (e *FlatEngine) Name() string { return e.name }

func (e *FlatEngine) Close() error { return nil }

func tableKey(table models.Table) string { return flatPrefix + string(table) }

func flatFlagKey(name string) string { return flatPrefix + "flag-" + name }

type idOnly struct {
	ID string `json:"id"`
}

func (e *FlatEngine) load(table models.Table) ([]json.RawMessage, error) {
	raw, ok, err := e.kv.GetItem(tableKey(table))
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tableKey(table), err)
	}
	return items, nil
}

func (e *FlatEngine) save(table models.Table, items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return e.kv.SetItem(tableKey(table), string(data))
}

func indexOf(items []json.RawMessage, id string) int {
	for i, item := range items {
		var rec idOnly
		if json.Unmarshal(item, &rec) == nil && rec.ID == id {
			return i
		}
	}
	return -1
}

func (e *FlatEngine) GetAll(ctx context.Context, table models.Table) ([][]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, err := e.load(table)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = []byte(item)
	}
	return out, nil
}

func (e *FlatEngine) Get(ctx context.Context, table models.Table, id string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, err := e.load(table)
	if err != nil {
		return nil, err
	}
	if i := indexOf(items, id); i >= 0 {
		return []byte(items[i]), nil
	}
	return nil, nil
}

func (e *FlatEngine) Put(ctx context.Context, table models.Table, id string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, err := e.load(table)
	if err != nil {
		return err
	}
	compact, err := compactJSON(data)
	if err != nil {
		return err
	}
	if i := indexOf(items, id); i >= 0 {
		items[i] = compact
	} else {
		items = append(items, compact)
	}
	return e.save(table, items)
}

func (e *FlatEngine) Delete(ctx context.Context, table models.Table, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, err := e.load(table)
	if err != nil {
		return err
	}
	i := indexOf(items, id)
	if i < 0 {
		return nil
	}
	items = append(items[:i], items[i+1:]...)
	return e.save(table, items)
}

func (e *FlatEngine) Flag(ctx context.Context, name string) (bool, error) {
	v, ok, err := e.kv.GetItem(flatFlagKey(name))
	if err != nil || !ok {
		return false, err
	}
	return v == "1", nil
}

func (e *FlatEngine) SetFlag(ctx context.Context, name string, value bool) error {
	if !value {
		return e.kv.RemoveItem(flatFlagKey(name))
	}
	return e.kv.SetItem(flatFlagKey(name), "1")
}

func compactJSON(data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("record is not valid JSON: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
