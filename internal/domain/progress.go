// ABOUTME: Progress service recording body measurements.
// ABOUTME: Several entries may share a user, metric and date.
package domain

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

// Progress manages progress entries.
type Progress struct {
	store *storage.Store
}

// Add records a measurement. metric accepts current and legacy names.
func (s *Progress) Add(ctx context.Context, userID, date, metric string, value float64) (*models.ProgressEntry, error) {
	v := models.Violations{}
	if strings.TrimSpace(userID) == "" {
		v.Add("userId", "is required")
	}
	if !validDate(date) {
		v.Add("date", "must be a date in YYYY-MM-DD form")
	}
	m, ok := models.ParseProgressMetric(metric)
	if !ok {
		v.Add("metric", "must be one of weight-kg, body-fat-percent, chest-cm, waist-cm")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		v.Add("value", "must be a number >= 0")
	}
	if err := v.Err(models.TableProgress); err != nil {
		return nil, err
	}

	entry := models.NewProgressEntry(userID, date, m, value)
	if _, err := s.store.Put(ctx, models.TableProgress, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Series returns a user's entries sorted by date. An empty metric returns
// every metric.
func (s *Progress) Series(ctx context.Context, userID string, metric models.ProgressMetric) ([]*models.ProgressEntry, error) {
	all, err := storage.All[models.ProgressEntry](ctx, s.store, models.TableProgress)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.UserID == userID && (metric == "" || p.Metric == metric) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Count returns how many entries a user has.
func (s *Progress) Count(ctx context.Context, userID string) (int, error) {
	entries, err := s.Series(ctx, userID, "")
	return len(entries), err
}

// Latest returns the most recent entry for a metric, or nil.
func (s *Progress) Latest(ctx context.Context, userID string, metric models.ProgressMetric) (*models.ProgressEntry, error) {
	entries, err := s.Series(ctx, userID, metric)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[len(entries)-1], nil
}
