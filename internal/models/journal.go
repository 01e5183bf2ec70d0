// ABOUTME: Workout and nutrition journal entry models.
// ABOUTME: Free-text log entries owned by a single user.
package models

import "time"

// WorkoutEntry records a workout a user completed.
type WorkoutEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (w *WorkoutEntry) RecordID() string      { return w.ID }
func (w *WorkoutEntry) SetRecordID(id string) { w.ID = id }

// NewWorkoutEntry creates a WorkoutEntry with generated id and current timestamp.
func NewWorkoutEntry(userID, title string) *WorkoutEntry {
	return &WorkoutEntry{
		ID:        NewID(PrefixWorkout),
		UserID:    userID,
		Title:     title,
		CreatedAt: Now(),
	}
}

// WithDetails sets free-text details on the entry.
func (w *WorkoutEntry) WithDetails(details string) *WorkoutEntry {
	w.Details = details
	return w
}

// NutritionEntry records a meal or nutrition note.
type NutritionEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n *NutritionEntry) RecordID() string      { return n.ID }
func (n *NutritionEntry) SetRecordID(id string) { n.ID = id }

// NewNutritionEntry creates a NutritionEntry with generated id and current timestamp.
func NewNutritionEntry(userID, title string) *NutritionEntry {
	return &NutritionEntry{
		ID:        NewID(PrefixNutrition),
		UserID:    userID,
		Title:     title,
		CreatedAt: Now(),
	}
}

// WithDetails sets free-text details on the entry.
func (n *NutritionEntry) WithDetails(details string) *NutritionEntry {
	n.Details = details
	return n
}
