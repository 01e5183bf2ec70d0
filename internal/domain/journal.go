// ABOUTME: Workout and nutrition journal service.
// ABOUTME: Entries are append-only and listed oldest first.
package domain

import (
	"context"
	"sort"
	"strings"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

// JournalKind selects the workout or nutrition journal.
type JournalKind string

const (
	JournalWorkout   JournalKind = "workout"
	JournalNutrition JournalKind = "nutrition"
)

// Journal manages workout and nutrition entries.
type Journal struct {
	store *storage.Store
}

func validateEntry(table models.Table, userID, title string) error {
	v := models.Violations{}
	if userID == "" {
		v.Add("userId", "is required")
	}
	if strings.TrimSpace(title) == "" {
		v.Add("title", "is required")
	}
	return v.Err(table)
}

// AddWorkout records a workout.
func (s *Journal) AddWorkout(ctx context.Context, userID, title, details string) (*models.WorkoutEntry, error) {
	if err := validateEntry(models.TableWorkouts, userID, title); err != nil {
		return nil, err
	}
	w := models.NewWorkoutEntry(userID, strings.TrimSpace(title)).WithDetails(details)
	if _, err := s.store.Put(ctx, models.TableWorkouts, w); err != nil {
		return nil, err
	}
	return w, nil
}

// AddNutrition records a nutrition entry.
func (s *Journal) AddNutrition(ctx context.Context, userID, title, details string) (*models.NutritionEntry, error) {
	if err := validateEntry(models.TableNutrition, userID, title); err != nil {
		return nil, err
	}
	n := models.NewNutritionEntry(userID, strings.TrimSpace(title)).WithDetails(details)
	if _, err := s.store.Put(ctx, models.TableNutrition, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Workouts returns a user's workouts, oldest first.
func (s *Journal) Workouts(ctx context.Context, userID string) ([]*models.WorkoutEntry, error) {
	all, err := storage.All[models.WorkoutEntry](ctx, s.store, models.TableWorkouts)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, w := range all {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Nutrition returns a user's nutrition entries, oldest first.
func (s *Journal) Nutrition(ctx context.Context, userID string) ([]*models.NutritionEntry, error) {
	all, err := storage.All[models.NutritionEntry](ctx, s.store, models.TableNutrition)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, n := range all {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
