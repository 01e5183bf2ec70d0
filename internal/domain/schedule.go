// ABOUTME: Schedule service preventing double-booked client slots.
// ABOUTME: Inserts run under the schedules table lock.
package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

// HasConflict reports whether any item occupies the client/date/time slot.
func HasConflict(items []*models.ScheduleItem, clientID, date, clock string) bool {
	return findConflict(items, clientID, date, clock) != nil
}

func findConflict(items []*models.ScheduleItem, clientID, date, clock string) *models.ScheduleItem {
	for _, it := range items {
		if it.Slot(clientID, date, clock) {
			return it
		}
	}
	return nil
}

// ScheduleInput describes a session to book.
type ScheduleInput struct {
	ClientID  string
	TrainerID string
	Date      string
	Time      string
	Title     string
}

func (in ScheduleInput) validate() error {
	v := models.Violations{}
	if strings.TrimSpace(in.ClientID) == "" {
		v.Add("clientId", "is required")
	}
	if !validDate(in.Date) {
		v.Add("date", "must be a date in YYYY-MM-DD form")
	}
	if !validClock(in.Time) {
		v.Add("time", "must be a time in HH:MM form")
	}
	return v.Err(models.TableSchedules)
}

// Schedule manages booked sessions.
type Schedule struct {
	store  *storage.Store
	dir    *Directory
	logger *zap.Logger
}

// Add books a session for an existing client unless the client already has
// one at that date and time.
func (s *Schedule) Add(ctx context.Context, in ScheduleInput) (*models.ScheduleItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.dir.requireClient(ctx, models.TableSchedules, in.ClientID); err != nil {
		return nil, err
	}

	unlock := s.store.Lock(models.TableSchedules)
	defer unlock()

	items, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	if existing := findConflict(items, in.ClientID, in.Date, in.Time); existing != nil {
		return nil, &ConflictError{Existing: existing}
	}

	item := &models.ScheduleItem{
		ID:        models.NewID(models.PrefixSchedule),
		ClientID:  in.ClientID,
		TrainerID: in.TrainerID,
		Date:      in.Date,
		Time:      in.Time,
		Title:     strings.TrimSpace(in.Title),
	}
	if _, err := s.store.Put(ctx, models.TableSchedules, item); err != nil {
		return nil, err
	}
	s.logger.Debug("session booked", zap.String("id", item.ID), zap.String("client_id", item.ClientID))
	return item, nil
}

// Delete removes a session. Missing ids are ignored.
func (s *Schedule) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, models.TableSchedules, id)
}

func (s *Schedule) all(ctx context.Context) ([]*models.ScheduleItem, error) {
	return storage.All[models.ScheduleItem](ctx, s.store, models.TableSchedules)
}

// ForUser returns the sessions visible to the session holder, sorted by
// date then time. Trainers see every session; clients see their own.
func (s *Schedule) ForUser(ctx context.Context, sess *models.Session) ([]*models.ScheduleItem, error) {
	if sess == nil {
		return nil, nil
	}
	items, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if sess.IsTrainer() || it.ClientID == sess.UserID {
			out = append(out, it)
		}
	}
	sortSchedule(out)
	return out, nil
}

// On returns every session on date, sorted by time.
func (s *Schedule) On(ctx context.Context, date string) ([]*models.ScheduleItem, error) {
	items, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if it.Date == date {
			out = append(out, it)
		}
	}
	sortSchedule(out)
	return out, nil
}

// Next returns the first visible session at or after now, or nil.
func (s *Schedule) Next(ctx context.Context, sess *models.Session, now time.Time) (*models.ScheduleItem, error) {
	items, err := s.ForUser(ctx, sess)
	if err != nil {
		return nil, err
	}
	cutoff := now.Format(models.DateLayout) + " " + now.Format(models.TimeLayout)
	for _, it := range items {
		if it.SortKey() >= cutoff {
			return it, nil
		}
	}
	return nil, nil
}

// Upcoming returns up to limit visible sessions at or after now.
func (s *Schedule) Upcoming(ctx context.Context, sess *models.Session, now time.Time, limit int) ([]*models.ScheduleItem, error) {
	items, err := s.ForUser(ctx, sess)
	if err != nil {
		return nil, err
	}
	cutoff := now.Format(models.DateLayout) + " " + now.Format(models.TimeLayout)
	var out []*models.ScheduleItem
	for _, it := range items {
		if it.SortKey() < cutoff {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func sortSchedule(items []*models.ScheduleItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].SortKey() < items[j].SortKey() })
}

// Describe formats an item for display.
func Describe(it *models.ScheduleItem) string {
	title := it.Title
	if title == "" {
		title = "Session"
	}
	return fmt.Sprintf("%s %s %s", it.Date, it.Time, title)
}
