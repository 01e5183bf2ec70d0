// ABOUTME: Whole-store snapshots used for backup, restore and migration between machines.
// ABOUTME: Import validates every record before writing any of them.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/seed"
	"github.com/harperreed/forma/internal/storage"
)

// Version is the snapshot format version written by Export.
const Version = 1

// ErrUnsupportedVersion is returned for snapshots of another format version.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Snapshot holds every record of every table.
type Snapshot struct {
	Version    int
	ExportedAt time.Time
	Data       map[models.Table][]models.Record
}

// Count returns the number of records in the snapshot.
func (s *Snapshot) Count() int {
	n := 0
	for _, recs := range s.Data {
		n += len(recs)
	}
	return n
}

// Export reads every table of store. Tables are read concurrently.
func Export(ctx context.Context, store *storage.Store) (*Snapshot, error) {
	results := make([][]models.Record, len(models.AllTables))

	g, gctx := errgroup.WithContext(ctx)
	for i, table := range models.AllTables {
		g.Go(func() error {
			recs, err := store.GetAll(gctx, table)
			if err != nil {
				return fmt.Errorf("export %s: %w", table, err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Version:    Version,
		ExportedAt: models.Now(),
		Data:       make(map[models.Table][]models.Record, len(models.AllTables)),
	}
	for i, table := range models.AllTables {
		if results[i] == nil {
			results[i] = []models.Record{}
		}
		snap.Data[table] = results[i]
	}
	return snap, nil
}

// Import upserts every record of snap into store and marks the store as
// seeded. Nothing is written unless every table is known and every record
// is valid.
func Import(ctx context.Context, store *storage.Store, snap *Snapshot) (map[models.Table]int, error) {
	if err := check(store, snap); err != nil {
		return nil, err
	}

	counts := make(map[models.Table]int, len(snap.Data))
	for _, table := range models.AllTables {
		for i, rec := range snap.Data[table] {
			if _, err := store.Put(ctx, table, rec); err != nil {
				return counts, fmt.Errorf("import %s[%d]: %w", table, i, err)
			}
			counts[table]++
		}
	}

	if err := store.SetFlag(ctx, seed.Flag, true); err != nil {
		return counts, err
	}
	return counts, nil
}

func check(store *storage.Store, snap *Snapshot) error {
	if snap == nil {
		return errors.New("import: empty snapshot")
	}
	if snap.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}
	for table, recs := range snap.Data {
		if !models.IsValidTable(string(table)) {
			return fmt.Errorf("%w: %q", storage.ErrUnknownTable, table)
		}
		for i, rec := range recs {
			if rec == nil {
				return fmt.Errorf("import %s[%d]: %w", table, i, models.Violations{"record": "is null"}.Err(table))
			}
			if err := store.Validate(table, rec); err != nil {
				return fmt.Errorf("import %s[%d]: %w", table, i, err)
			}
		}
	}
	return nil
}
