// ABOUTME: One-time demo data loader guarded by a persisted flag.
// ABOUTME: Reads per-table JSON datasets from the binary or a directory.
package seed

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

// Flag is the store flag set once seeding (or an import) has happened.
const Flag = "seeded-v1"

// DefaultDemoPassword is assigned to seed users without a password hash.
const DefaultDemoPassword = "demo123"

//go:embed data/*.json
var embedded embed.FS

// Source provides the raw records of one table. A missing dataset is empty.
type Source interface {
	Load(ctx context.Context, table models.Table) ([]json.RawMessage, error)
}

// EmbeddedSource reads the datasets compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(ctx context.Context, table models.Table) ([]json.RawMessage, error) {
	return loadFS(embedded, "data/"+string(table)+".json")
}

// DirSource reads <table>.json files from a directory.
type DirSource struct {
	Dir string
}

func (d DirSource) Load(ctx context.Context, table models.Table) ([]json.RawMessage, error) {
	return loadFS(os.DirFS(d.Dir), string(table)+".json")
}

func loadFS(fsys fs.FS, name string) ([]json.RawMessage, error) {
	data, err := fs.ReadFile(fsys, filepath.ToSlash(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return items, nil
}

// Result reports what SeedIfNeeded did.
type Result struct {
	Skipped bool
	Counts  map[models.Table]int
}

// Total returns the number of records written.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Seeder populates an empty store with demo data.
type Seeder struct {
	Store        *storage.Store
	Source       Source
	Hasher       *auth.Hasher
	DemoPassword string
	Logger       *zap.Logger
}

// SeedIfNeeded loads every dataset unless the seed flag is already set.
// Users without a password hash get the demo password; records without an
// id get a generated one. The flag is set only after every record is stored.
func (s *Seeder) SeedIfNeeded(ctx context.Context) (Result, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	seeded, err := s.Store.Flag(ctx, Flag)
	if err != nil {
		return Result{}, err
	}
	if seeded {
		return Result{Skipped: true}, nil
	}

	source := s.Source
	if source == nil {
		source = EmbeddedSource{}
	}

	datasets := make(map[models.Table][]json.RawMessage, len(models.AllTables))
	for _, table := range models.AllTables {
		items, err := source.Load(ctx, table)
		if err != nil {
			return Result{}, err
		}
		datasets[table] = items
	}

	var demoHash string
	if len(datasets[models.TableUsers]) > 0 {
		if demoHash, err = s.demoHash(); err != nil {
			return Result{}, err
		}
	}

	res := Result{Counts: make(map[models.Table]int)}
	for _, table := range models.AllTables {
		for i, item := range datasets[table] {
			raw, err := prepare(table, item, demoHash)
			if err != nil {
				return res, fmt.Errorf("seed %s[%d]: %w", table, i, err)
			}
			if _, err := s.Store.PutRaw(ctx, table, raw); err != nil {
				return res, fmt.Errorf("seed %s[%d]: %w", table, i, err)
			}
			res.Counts[table]++
		}
	}

	if err := s.Store.SetFlag(ctx, Flag, true); err != nil {
		return res, err
	}
	logger.Info("seeded demo data", zap.Int("records", res.Total()))
	return res, nil
}

func (s *Seeder) demoHash() (string, error) {
	hasher := s.Hasher
	if hasher == nil {
		hasher = auth.NewHasher(0)
	}
	password := s.DemoPassword
	if password == "" {
		password = DefaultDemoPassword
	}
	return hasher.Hash(password)
}

// prepare fills in a missing id and, for users, a missing password hash.
func prepare(table models.Table, item json.RawMessage, demoHash string) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(item, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("record must be a JSON object")
	}

	if id, _ := fields["id"].(string); id == "" {
		fields["id"] = models.NewID(string(table))
	}
	if table == models.TableUsers {
		if hash, _ := fields["passwordHash"].(string); hash == "" {
			fields["passwordHash"] = demoHash
		}
	}
	return json.Marshal(fields)
}
