// ABOUTME: ProgressEntry model and ProgressMetric enum.
// ABOUTME: Tracks body measurements over time per user and metric.
package models

import "strings"

// ProgressMetric is the kind of body measurement being recorded.
type ProgressMetric string

const (
	MetricWeightKg       ProgressMetric = "weight-kg"
	MetricBodyFatPercent ProgressMetric = "body-fat-percent"
	MetricChestCm        ProgressMetric = "chest-cm"
	MetricWaistCm        ProgressMetric = "waist-cm"
)

// MetricUnits maps progress metrics to their display units.
var MetricUnits = map[ProgressMetric]string{
	MetricWeightKg:       "kg",
	MetricBodyFatPercent: "%",
	MetricChestCm:        "cm",
	MetricWaistCm:        "cm",
}

// AllProgressMetrics returns all valid progress metrics.
var AllProgressMetrics = []ProgressMetric{
	MetricWeightKg, MetricBodyFatPercent, MetricChestCm, MetricWaistCm,
}

// legacyMetrics maps camelCase names found in older data files.
var legacyMetrics = map[string]ProgressMetric{
	"weightKg":       MetricWeightKg,
	"bodyFatPercent": MetricBodyFatPercent,
	"chestCm":        MetricChestCm,
	"waistCm":        MetricWaistCm,
}

// ParseProgressMetric normalizes a metric name, accepting legacy spellings.
func ParseProgressMetric(s string) (ProgressMetric, bool) {
	s = strings.TrimSpace(s)
	for _, m := range AllProgressMetrics {
		if string(m) == s {
			return m, true
		}
	}
	if m, ok := legacyMetrics[s]; ok {
		return m, true
	}
	return "", false
}

// UnmarshalText normalizes legacy metric names while decoding.
func (m *ProgressMetric) UnmarshalText(text []byte) error {
	if parsed, ok := ParseProgressMetric(string(text)); ok {
		*m = parsed
		return nil
	}
	// Unknown names are kept verbatim and rejected by validation.
	*m = ProgressMetric(text)
	return nil
}

// ProgressEntry is one measurement. Several entries may share a user,
// metric and date.
type ProgressEntry struct {
	ID     string         `json:"id"`
	UserID string         `json:"userId"`
	Date   string         `json:"date"`
	Metric ProgressMetric `json:"metric"`
	Value  float64        `json:"value"`
}

func (p *ProgressEntry) RecordID() string      { return p.ID }
func (p *ProgressEntry) SetRecordID(id string) { p.ID = id }

// Unit returns the display unit of the entry's metric.
func (p *ProgressEntry) Unit() string { return MetricUnits[p.Metric] }

// NewProgressEntry creates a ProgressEntry with a generated id.
func NewProgressEntry(userID, date string, metric ProgressMetric, value float64) *ProgressEntry {
	return &ProgressEntry{
		ID:     NewID(PrefixProgress),
		UserID: userID,
		Date:   date,
		Metric: metric,
		Value:  value,
	}
}
