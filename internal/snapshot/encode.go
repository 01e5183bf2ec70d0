// ABOUTME: JSON and YAML encodings of snapshots.
// ABOUTME: JSON is the backup format; YAML is for reading.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

type fileFormat struct {
	Version    int                        `json:"version"`
	ExportedAt time.Time                  `json:"exportedAt"`
	Data       map[string]json.RawMessage `json:"data"`
}

// EncodeJSON renders snap in the snapshot file format.
func EncodeJSON(snap *Snapshot) ([]byte, error) {
	out := fileFormat{
		Version:    snap.Version,
		ExportedAt: snap.ExportedAt,
		Data:       make(map[string]json.RawMessage, len(snap.Data)),
	}
	for table, recs := range snap.Data {
		if recs == nil {
			recs = []models.Record{}
		}
		raw, err := json.Marshal(recs)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", table, err)
		}
		out.Data[string(table)] = raw
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecodeJSON parses the snapshot file format. Records are decoded into the
// concrete type of their table; unknown tables are rejected.
func DecodeJSON(data []byte) (*Snapshot, error) {
	var in fileFormat
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	snap := &Snapshot{
		Version:    in.Version,
		ExportedAt: in.ExportedAt,
		Data:       make(map[models.Table][]models.Record, len(in.Data)),
	}
	for name, raw := range in.Data {
		if !models.IsValidTable(name) {
			return nil, fmt.Errorf("%w: %q", storage.ErrUnknownTable, name)
		}
		table := models.Table(name)

		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("parse %s: %w", table, err)
		}
		recs := make([]models.Record, 0, len(items))
		for i, item := range items {
			rec, err := models.DecodeRecord(table, item)
			if err != nil {
				return nil, fmt.Errorf("parse %s[%d]: %w", table, i, err)
			}
			recs = append(recs, rec)
		}
		snap.Data[table] = recs
	}
	return snap, nil
}

// EncodeYAML renders snap as YAML with the same field names as the JSON
// format.
func EncodeYAML(snap *Snapshot) ([]byte, error) {
	data, err := EncodeJSON(snap)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}
