// ABOUTME: Data migration between storage engines.
// ABOUTME: Copies every table and the named flags from source to destination.

package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/harperreed/forma/internal/models"
)

// MigrateSummary holds counts of migrated records.
type MigrateSummary struct {
	Tables map[models.Table]int
	Flags  int
}

// Total returns the number of records copied.
func (m *MigrateSummary) Total() int {
	n := 0
	for _, c := range m.Tables {
		n += c
	}
	return n
}

// MigrateData copies all records from src to dst, table by table in
// models.AllTables order, then copies each named flag that is set in src.
// Records already present in dst with the same id are overwritten.
func MigrateData(ctx context.Context, src, dst Engine, flags ...string) (*MigrateSummary, error) {
	summary := &MigrateSummary{Tables: make(map[models.Table]int)}

	for _, table := range models.AllTables {
		raws, err := src.GetAll(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("list source %s: %w", table, err)
		}

		for _, raw := range raws {
			rec, err := models.DecodeRecord(table, raw)
			if err != nil {
				return nil, err
			}
			if err := dst.Put(ctx, table, rec.RecordID(), raw); err != nil {
				return nil, fmt.Errorf("copy %s %s: %w", table, rec.RecordID(), err)
			}
			summary.Tables[table]++
		}
	}

	for _, name := range flags {
		set, err := src.Flag(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("read flag %s: %w", name, err)
		}
		if !set {
			continue
		}
		if err := dst.SetFlag(ctx, name, true); err != nil {
			return nil, fmt.Errorf("write flag %s: %w", name, err)
		}
		summary.Flags++
	}

	return summary, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
