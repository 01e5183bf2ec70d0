// ABOUTME: Store facade selecting one engine at startup and validating records.
// ABOUTME: Falls back to the flat engine when the durable engine cannot open.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/schema"
)

// Options configures a Store.
type Options struct {
	// Durable opens the preferred engine. When nil the fallback is used directly.
	Durable Opener
	// Fallback opens the engine used when Durable fails. Defaults to MemoryOpener.
	Fallback Opener
	Logger   *zap.Logger
}

// Store is the record store used by every other component. It is safe for
// concurrent use.
type Store struct {
	opts   Options
	logger *zap.Logger

	mu        sync.RWMutex
	engine    Engine
	fallback  bool
	validator *schema.Validator

	locksMu sync.Mutex
	locks   map[models.Table]*sync.Mutex
}

// NewStore creates an uninitialized Store.
func NewStore(opts Options) *Store {
	if opts.Fallback == nil {
		opts.Fallback = MemoryOpener()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		opts:   opts,
		logger: logger,
		locks:  make(map[models.Table]*sync.Mutex),
	}
}

// Initialize opens the engine. It is idempotent; once an engine is selected
// it is never switched.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return nil
	}

	v, err := schema.Default()
	if err != nil {
		return err
	}

	if s.opts.Durable != nil {
		engine, err := s.opts.Durable(ctx)
		if err == nil {
			s.engine, s.validator = engine, v
			s.logger.Debug("storage engine ready", zap.String("engine", engine.Name()))
			return nil
		}
		s.logger.Warn("durable storage unavailable, using fallback", zap.Error(err))
	}

	engine, err := s.opts.Fallback(ctx)
	if err != nil {
		return &IOError{Op: "open", Err: err}
	}
	s.engine, s.validator, s.fallback = engine, v, true
	s.logger.Debug("storage engine ready", zap.String("engine", engine.Name()), zap.Bool("fallback", true))
	return nil
}

func (s *Store) current() (Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil, ErrUninitialized
	}
	return s.engine, nil
}

// Engine returns the active engine name, or "" before Initialize.
func (s *Store) Engine() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return ""
	}
	return s.engine.Name()
}

// Backend returns the active engine itself.
func (s *Store) Backend() (Engine, error) {
	return s.current()
}

// Fallback reports whether the fallback engine is active.
func (s *Store) Fallback() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

// GetAll returns every record of a table.
func (s *Store) GetAll(ctx context.Context, table models.Table) ([]models.Record, error) {
	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}

	raws, err := engine.GetAll(ctx, table)
	if err != nil {
		return nil, &IOError{Op: "get all", Table: table, Err: err}
	}

	out := make([]models.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := models.DecodeRecord(table, raw)
		if err != nil {
			return nil, &IOError{Op: "get all", Table: table, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns the record with id, or nil when absent.
func (s *Store) Get(ctx context.Context, table models.Table, id string) (models.Record, error) {
	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}

	raw, err := engine.Get(ctx, table, id)
	if err != nil {
		return nil, &IOError{Op: "get", Table: table, Err: err}
	}
	if raw == nil {
		return nil, nil
	}
	rec, err := models.DecodeRecord(table, raw)
	if err != nil {
		return nil, &IOError{Op: "get", Table: table, Err: err}
	}
	return rec, nil
}

// Validate checks a record against the table schema without writing it.
func (s *Store) Validate(table models.Table, rec models.Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	v, err := schema.Default()
	if err != nil {
		return err
	}
	return v.ValidateRecord(table, rec)
}

// Put validates and upserts a record.
func (s *Store) Put(ctx context.Context, table models.Table, rec models.Record) (models.Record, error) {
	engine, err := s.current()
	if err != nil {
		return nil, err
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", table, err)
	}
	if err := s.validator.Validate(table, data); err != nil {
		return nil, err
	}
	if err := engine.Put(ctx, table, rec.RecordID(), data); err != nil {
		return nil, &IOError{Op: "put", Table: table, Err: err}
	}
	return rec, nil
}

// PutRaw decodes JSON into the table's record type, then stores it as Put.
func (s *Store) PutRaw(ctx context.Context, table models.Table, raw []byte) (models.Record, error) {
	if _, err := s.current(); err != nil {
		return nil, err
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}
	rec, err := models.DecodeRecord(table, raw)
	if err != nil {
		return nil, models.Violations{"record": err.Error()}.Err(table)
	}
	return s.Put(ctx, table, rec)
}

// Delete removes a record. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, table models.Table, id string) error {
	engine, err := s.current()
	if err != nil {
		return err
	}
	if err := checkTable(table); err != nil {
		return err
	}
	if err := engine.Delete(ctx, table, id); err != nil {
		return &IOError{Op: "delete", Table: table, Err: err}
	}
	return nil
}

// Flag reads a persisted boolean.
func (s *Store) Flag(ctx context.Context, name string) (bool, error) {
	engine, err := s.current()
	if err != nil {
		return false, err
	}
	v, err := engine.Flag(ctx, name)
	if err != nil {
		return false, &IOError{Op: "read flag " + name, Err: err}
	}
	return v, nil
}

// SetFlag writes a persisted boolean.
func (s *Store) SetFlag(ctx context.Context, name string, value bool) error {
	engine, err := s.current()
	if err != nil {
		return err
	}
	if err := engine.SetFlag(ctx, name, value); err != nil {
		return &IOError{Op: "write flag " + name, Err: err}
	}
	return nil
}

// Lock takes the single-writer lock for a table and returns its release
// func. Check-then-insert sequences must hold it across the read and write.
func (s *Store) Lock(table models.Table) func() {
	s.locksMu.Lock()
	m, ok := s.locks[table]
	if !ok {
		m = &sync.Mutex{}
		s.locks[table] = m
	}
	s.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Close releases the engine. The Store is uninitialized afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	s.fallback = false
	return err
}

// All returns every record of a table as its concrete type.
func All[T any, PT interface {
	*T
	models.Record
}](ctx context.Context, s *Store, table models.Table) ([]*T, error) {
	recs, err := s.GetAll(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		typed, ok := rec.(PT)
		if !ok {
			return nil, fmt.Errorf("table %s holds %T", table, rec)
		}
		out = append(out, (*T)(typed))
	}
	return out, nil
}

// Find returns one record as its concrete type, or nil when absent.
func Find[T any, PT interface {
	*T
	models.Record
}](ctx context.Context, s *Store, table models.Table, id string) (*T, error) {
	rec, err := s.Get(ctx, table, id)
	if err != nil || rec == nil {
		return nil, err
	}
	typed, ok := rec.(PT)
	if !ok {
		return nil, fmt.Errorf("table %s holds %T", table, rec)
	}
	return (*T)(typed), nil
}
